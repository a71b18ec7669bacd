package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL        string        `env:"DATABASE_URL" envDefault:"sqlite:///./jogos.db"`
	Username           string        `env:"USUARIO,required"`
	Password           string        `env:"SENHA,required"`
	ServerAddr         string        `env:"SERVER_ADDR" envDefault:":8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	WriteRatePerMinute float64       `env:"WRITE_RATE_PER_MINUTE" envDefault:"60"`
	WriteBurst         int           `env:"WRITE_BURST" envDefault:"10"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the process environment. It is meant to
// be called once at startup.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL must not be empty")
	}
	if c.Username == "" || c.Password == "" {
		return errors.New("USUARIO and SENHA must not be empty")
	}
	if c.WriteRatePerMinute < 0 {
		return errors.New("WRITE_RATE_PER_MINUTE must not be negative")
	}
	if c.WriteRatePerMinute > 0 && c.WriteBurst < 1 {
		return errors.New("WRITE_BURST must be at least 1 when rate limiting is enabled")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
