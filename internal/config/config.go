package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort   string `env:"PORT" envDefault:"8080"`
	DatabaseType string `env:"DB_TYPE" envDefault:"sqlite"`
	DatabasePath string `env:"DB_PATH" envDefault:"./familytasks.db"`
	DatabaseURL  string `env:"DATABASE_URL"`

	DefaultMaxMembers int `env:"DEFAULT_MAX_MEMBERS" envDefault:"4"`
	PremiumMaxMembers int `env:"PREMIUM_MAX_MEMBERS" envDefault:"10"`

	TxMaxAttempts    int           `env:"TX_MAX_ATTEMPTS" envDefault:"5"`
	TxInitialBackoff time.Duration `env:"TX_INITIAL_BACKOFF" envDefault:"20ms"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	JoinRateLimit int `env:"JOIN_RATE_LIMIT" envDefault:"10"` // Join attempts per client per minute

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	AMQPURL         string `env:"AMQP_URL"`
	AMQPExchange    string `env:"AMQP_EXCHANGE" envDefault:"familytasks.events"`
	OutboxBatchSize int    `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// Cron specs for the background jobs run by the server; empty disables a job
	RelaySchedule  string `env:"RELAY_SCHEDULE" envDefault:"@every 10s"`
	RepairSchedule string `env:"REPAIR_SCHEDULE" envDefault:"@every 1m"`
}

// Load reads configuration from an optional .env file and the environment
func Load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects configurations the engine cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.DatabaseType) {
	case "sqlite", "sqlite3":
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for %s", c.DatabaseType))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_TYPE %q", c.DatabaseType))
	}

	if c.DefaultMaxMembers < 1 {
		errs = append(errs, errors.New("DEFAULT_MAX_MEMBERS must be at least 1"))
	}
	if c.PremiumMaxMembers < c.DefaultMaxMembers {
		errs = append(errs, errors.New("PREMIUM_MAX_MEMBERS must not be below DEFAULT_MAX_MEMBERS"))
	}
	if c.TxMaxAttempts < 1 {
		errs = append(errs, errors.New("TX_MAX_ATTEMPTS must be at least 1"))
	}
	if c.TxInitialBackoff <= 0 {
		errs = append(errs, errors.New("TX_INITIAL_BACKOFF must be positive"))
	}
	if c.JoinRateLimit < 1 {
		errs = append(errs, errors.New("JOIN_RATE_LIMIT must be at least 1"))
	}
	if c.OutboxBatchSize < 1 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be at least 1"))
	}

	return errors.Join(errs...)
}

// DSN returns the connection string for the configured database type
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}
