package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultPath = "configs/config.yaml"

type Config struct {
	Server struct {
		Address string `yaml:"address"`
		AuthKey string `yaml:"auth_key"`
	} `yaml:"server"`

	Google GoogleConfig `yaml:"google"`

	Sweep struct {
		ReservationColumn    string `yaml:"reservation_column"`
		HeaderRows           int    `yaml:"header_rows"`
		WriteIntervalMillis  int    `yaml:"write_interval_ms"`
		Timezone             string `yaml:"timezone"`
		LockTTLSeconds       int    `yaml:"lock_ttl_seconds"`
		ScheduleIntervalMins int    `yaml:"schedule_interval_minutes"`
		RunTimeoutSeconds    int    `yaml:"run_timeout_seconds"`
	} `yaml:"sweep"`

	Trello struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		Token           string `yaml:"token"`
		BoardID         string `yaml:"board_id"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"trello"`

	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		ChatIDs  []int64 `yaml:"chat_ids"`
	} `yaml:"telegram"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// GoogleConfig describes the spreadsheet and the two credentials used against it:
// an API key for reads and a service account for writes.
type GoogleConfig struct {
	SpreadsheetID  string         `yaml:"spreadsheet_id"`
	SheetName      string         `yaml:"sheet_name"`
	ReadRange      string         `yaml:"read_range"`
	APIKey         string         `yaml:"api_key"`
	ServiceAccount ServiceAccount `yaml:"service_account"`
}

type ServiceAccount struct {
	ProjectID    string `yaml:"project_id"`
	PrivateKeyID string `yaml:"private_key_id"`
	PrivateKey   string `yaml:"private_key"`
	ClientEmail  string `yaml:"client_email"`
	ClientID     string `yaml:"client_id"`
}

// Load reads the YAML file at path (or the default path when it exists), loads
// a .env file if present and fills empty fields from the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string) ([]byte, error) {
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return data, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}

	set(&c.Server.AuthKey, "CLEANUP_AUTH_KEY")
	set(&c.Google.APIKey, "GOOGLE_SHEETS_API_KEY")
	set(&c.Google.SpreadsheetID, "GOOGLE_SHEET_ID")
	set(&c.Google.ServiceAccount.ProjectID, "GOOGLE_PROJECT_ID")
	set(&c.Google.ServiceAccount.PrivateKeyID, "GOOGLE_PRIVATE_KEY_ID")
	set(&c.Google.ServiceAccount.PrivateKey, "GOOGLE_PRIVATE_KEY")
	set(&c.Google.ServiceAccount.ClientEmail, "GOOGLE_CLIENT_EMAIL")
	set(&c.Google.ServiceAccount.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.Trello.APIKey, "TRELLO_API_KEY")
	set(&c.Trello.Token, "TRELLO_TOKEN")
	set(&c.Trello.BoardID, "TRELLO_BOARD_ID")
	set(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	set(&c.Redis.Address, "REDIS_ADDR")

	// Keys pasted into environment variables usually carry literal "\n".
	c.Google.ServiceAccount.PrivateKey = strings.ReplaceAll(c.Google.ServiceAccount.PrivateKey, `\n`, "\n")
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Lager"
	}
	if c.Google.ReadRange == "" {
		c.Google.ReadRange = "A:Z"
	}
	if c.Sweep.ReservationColumn == "" {
		c.Sweep.ReservationColumn = "Reserverad_av"
	}
	if c.Sweep.HeaderRows <= 0 {
		c.Sweep.HeaderRows = 1
	}
	if c.Sweep.WriteIntervalMillis <= 0 {
		c.Sweep.WriteIntervalMillis = 100
	}
	if c.Sweep.Timezone == "" {
		c.Sweep.Timezone = "UTC"
	}
	if c.Sweep.LockTTLSeconds <= 0 {
		c.Sweep.LockTTLSeconds = 300
	}
	if c.Sweep.RunTimeoutSeconds <= 0 {
		c.Sweep.RunTimeoutSeconds = 120
	}
	if c.Trello.BaseURL == "" {
		c.Trello.BaseURL = "https://api.trello.com/1"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks the settings the sweeper cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.AuthKey == "" {
		problems = append(problems, "server.auth_key (CLEANUP_AUTH_KEY) is required")
	}
	if c.Google.SpreadsheetID == "" {
		problems = append(problems, "google.spreadsheet_id is required")
	}
	if c.Google.APIKey == "" {
		problems = append(problems, "google.api_key (GOOGLE_SHEETS_API_KEY) is required")
	}
	if _, err := time.LoadLocation(c.Sweep.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("sweep.timezone: %v", err))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HasServiceAccount reports whether write credentials are configured.
func (c *Config) HasServiceAccount() bool {
	sa := c.Google.ServiceAccount
	return sa.ClientEmail != "" && sa.PrivateKey != ""
}

func (c *Config) WriteInterval() time.Duration {
	return time.Duration(c.Sweep.WriteIntervalMillis) * time.Millisecond
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Sweep.LockTTLSeconds) * time.Second
}

func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Sweep.RunTimeoutSeconds) * time.Second
}

func (c *Config) ScheduleInterval() time.Duration {
	if c.Sweep.ScheduleIntervalMins <= 0 {
		return 0
	}
	return time.Duration(c.Sweep.ScheduleIntervalMins) * time.Minute
}

func (c *Config) TrelloCacheTTL() time.Duration {
	if c.Trello.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Trello.CacheTTLSeconds) * time.Second
}

// Location returns the zone in which "today" is evaluated. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sweep.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) TrelloEnabled() bool {
	return c.Trello.APIKey != "" && c.Trello.Token != "" && c.Trello.BoardID != ""
}
