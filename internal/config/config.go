package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	DBPath    string `envconfig:"DB_PATH" default:"./data/payments.db"`
	DefaultTZ string `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"` // the one zone reminders fire in
	RunMode   string `envconfig:"RUN_MODE" default:"polling"`         // polling|webhook (MVP: polling)
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`           // debug|info|warn|error
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`          // healthz

	RemindHour      int           `envconfig:"REMIND_HOUR" default:"10"`
	SelectionTTL    time.Duration `envconfig:"SELECTION_TTL" default:"10m"`
	SelectionSweep  time.Duration `envconfig:"SELECTION_SWEEP" default:"1m"`
	DispatchTimeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"10s"`
	AdminIDs        []int64       `envconfig:"ADMIN_IDS"` // Telegram ids, comma-separated
}

// Load reads an optional .env file, then environment variables into Config.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	var cfg Config
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf(".env: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	if c.RemindHour < 0 || c.RemindHour > 23 {
		return fmt.Errorf("REMIND_HOUR must be 0..23, got %d", c.RemindHour)
	}
	if c.SelectionTTL <= 0 || c.SelectionSweep <= 0 || c.DispatchTimeout <= 0 {
		return errors.New("SELECTION_TTL, SELECTION_SWEEP and DISPATCH_TIMEOUT must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("DEFAULT_TZ: %w", err)
	}
	return nil
}

// Location resolves DefaultTZ.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.DefaultTZ)
}

// IsAdmin reports whether the Telegram id is listed in ADMIN_IDS.
func (c Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
