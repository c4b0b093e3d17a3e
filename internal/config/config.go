package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8090"`

	// Storage root holding the pages.
	PageRoot string `env:"PAGE_ROOT" envDefault:"./pages"`

	// Move journal database. Empty disables the journal.
	MoveJournalPath string `env:"MOVE_JOURNAL_PATH"`

	// Request limits
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"10485760"` // 10MB

	// Latency stats window
	StatsWindow time.Duration `env:"STATS_WINDOW" envDefault:"1h"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment. Non-positive limits
// fall back to their defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10485760
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = time.Hour
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.PageRoot == "" {
		return fmt.Errorf("PAGE_ROOT is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	return nil
}
