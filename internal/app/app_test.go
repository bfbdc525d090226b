package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lagerstatus/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Address = ":0"
	cfg.Server.AuthKey = "secret"
	cfg.Google.SpreadsheetID = "sheet-1"
	cfg.Google.SheetName = "Lager"
	cfg.Google.APIKey = "api-key"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	return cfg
}

func TestNew_Minimal(t *testing.T) {
	a, err := New(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Sweeper)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Deliveries)
	assert.NoError(t, a.Ping(context.Background()))
	assert.NotNil(t, a.HTTPServer().Handler())
}

func TestNew_WithRedisAndTrello(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Redis.Address = mr.Addr()
	cfg.Trello.BaseURL = "http://127.0.0.1:1"
	cfg.Trello.APIKey = "k"
	cfg.Trello.Token = "t"
	cfg.Trello.BoardID = "b"
	cfg.Trello.CacheTTLSeconds = 60

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Redis)
	assert.NotNil(t, a.Deliveries)
	assert.NoError(t, a.Ping(context.Background()))

	mr.Close()
	assert.Error(t, a.Ping(context.Background()))
}

func TestNewLogger(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, zerolog.DebugLevel, NewLogger(cfg).GetLevel())

	cfg.Logging.Level = "nonsense"
	cfg.Logging.Format = "console"
	assert.Equal(t, zerolog.InfoLevel, NewLogger(cfg).GetLevel())
}
