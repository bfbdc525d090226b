// Package app wires configuration into the running components.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lagerstatus/internal/api"
	"lagerstatus/internal/config"
	"lagerstatus/internal/google"
	"lagerstatus/internal/notify"
	"lagerstatus/internal/sweep"
	"lagerstatus/internal/trello"
)

// App holds the long-lived components built from one configuration.
type App struct {
	Config     *config.Config
	Sheets     *google.SheetsService
	Sweeper    *sweep.Sweeper
	Deliveries *trello.Service
	Redis      *redis.Client
	Logger     zerolog.Logger
}

// NewLogger builds the process logger from the logging settings.
func NewLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// New builds the app. Optional parts (Redis, Trello, Telegram) are skipped
// when their settings are empty.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	sheets, err := google.NewSheetsService(ctx, cfg.Google, &logger)
	if err != nil {
		return nil, fmt.Errorf("sheets: %w", err)
	}
	a.Sheets = sheets

	if cfg.Redis.Address != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var locker sweep.Locker
	if a.Redis != nil {
		locker = sweep.NewRedisLocker(a.Redis)
	}

	var notifier sweep.Notifier
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ChatIDs) > 0 {
		tg, err := notify.NewTelegramFromToken(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifications disabled")
		} else {
			notifier = tg
		}
	}

	if !cfg.HasServiceAccount() {
		logger.Warn().Msg("no service account configured, expired reservations cannot be cleared")
	}

	a.Sweeper = sweep.NewSweeper(sweep.Config{
		AuthKey:           cfg.Server.AuthKey,
		ReservationColumn: cfg.Sweep.ReservationColumn,
		HeaderRows:        cfg.Sweep.HeaderRows,
		WriteInterval:     cfg.WriteInterval(),
		Location:          cfg.Location(),
		LockTTL:           cfg.LockTTL(),
	}, sheets, writerOpener(sheets), locker, notifier, logger)

	if cfg.TrelloEnabled() {
		client := trello.NewClient(cfg.Trello.BaseURL, cfg.Trello.APIKey, cfg.Trello.Token, cfg.Trello.BoardID)
		if a.Redis != nil {
			client.UseRedisCache(a.Redis, cfg.TrelloCacheTTL())
		}
		a.Deliveries = trello.NewService(client, cfg.Location())
	}

	return a, nil
}

func writerOpener(sheets *google.SheetsService) sweep.WriterOpener {
	return func(ctx context.Context) (sweep.CellWriter, error) {
		w, err := sheets.NewWriter(ctx)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
}

// HTTPServer builds the API server on the configured address.
func (a *App) HTTPServer() *api.HTTPServer {
	var deliveries api.DeliverySource
	if a.Deliveries != nil {
		deliveries = a.Deliveries
	}
	return api.NewHTTPServer(a.Config.Server.Address, a.Config.Server.AuthKey, a.Sweeper, deliveries, a.Logger)
}

// Ping checks the optional Redis connection.
func (a *App) Ping(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Ping(ctx).Err()
}

func (a *App) Close() error {
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}
