// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration.
type Config struct {
	Port           int    `env:"PORT" envDefault:"8080"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`
	Database       DatabaseConfig
	Logging        LoggingConfig
}

// DatabaseConfig holds PostgreSQL connection settings. URL wins over the
// individual parts when set.
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"eventregistration"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns int32  `env:"DB_MIN_CONNS" envDefault:"2"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("PORT %d out of range", cfg.Port)
	}
	return cfg, nil
}

// DSN returns a postgres:// URL usable by both pgx and golang-migrate.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
