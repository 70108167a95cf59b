package main

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"exercisetracker/storage"
)

// Config is read from the environment, optionally seeded by a .env file.
type Config struct {
	Host string `env:"HOST" envDefault:"127.0.0.1"`
	Port int    `env:"PORT" envDefault:"3000"`

	DBDriver          string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN             string        `env:"DB_DSN" envDefault:"tracker.db"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"3m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	// RateLimitPerMinute caps requests per client IP. Zero disables it.
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"0"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Verbose            bool          `env:"VERBOSE"`
}

// loadConfig reads the given .env files (".env" when none are named) into the
// process environment and parses it. Variables already set win over the
// files, and missing files are ignored.
func loadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, xerrors.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, xerrors.Errorf("parse env: %w", err)
	}
	switch cfg.DBDriver {
	case storage.DriverMySQL, storage.DriverSQLite:
	default:
		return Config{}, xerrors.Errorf("DB_DRIVER must be %q or %q, got %q",
			storage.DriverSQLite, storage.DriverMySQL, cfg.DBDriver)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, xerrors.Errorf("PORT out of range: %d", cfg.Port)
	}
	return cfg, nil
}
