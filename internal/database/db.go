package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"familytasks/internal/config"
)

const (
	defaultTxMaxAttempts    = 5
	defaultTxInitialBackoff = 20 * time.Millisecond
)

// DB wraps the database connection with dialect support
type DB struct {
	*sql.DB
	Dialect Dialect

	txMaxAttempts    int
	txInitialBackoff time.Duration
	logger           zerolog.Logger
}

// Option customizes a DB
type Option func(*DB)

// WithRetry sets the transaction attempt budget and the first backoff interval
func WithRetry(maxAttempts int, initialBackoff time.Duration) Option {
	return func(db *DB) {
		if maxAttempts > 0 {
			db.txMaxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			db.txInitialBackoff = initialBackoff
		}
	}
}

// WithLogger sets the logger used for migrations and transaction retries
func WithLogger(logger zerolog.Logger) Option {
	return func(db *DB) {
		db.logger = logger
	}
}

// Initialize creates and configures a SQLite database connection
func Initialize(dbPath string, opts ...Option) (*DB, error) {
	return open(NewSQLiteDialect(), DialectConfig{Path: dbPath}, opts...)
}

// InitializeWithConfig creates and configures the database connection based on config
func InitializeWithConfig(cfg *config.Config, opts ...Option) (*DB, error) {
	var dialect Dialect
	var dialectConfig DialectConfig

	switch strings.ToLower(cfg.DatabaseType) {
	case "postgres", "postgresql":
		dialect = NewPostgresDialect()
		dialectConfig = DialectConfig{URL: cfg.DatabaseURL}
	case "mysql":
		dialect = NewMySQLDialect()
		dialectConfig = DialectConfig{URL: cfg.DatabaseURL}
	case "sqlite", "sqlite3", "":
		dialect = NewSQLiteDialect()
		dialectConfig = DialectConfig{Path: cfg.DatabasePath}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}

	opts = append([]Option{WithRetry(cfg.TxMaxAttempts, cfg.TxInitialBackoff)}, opts...)
	return open(dialect, dialectConfig, opts...)
}

func open(dialect Dialect, dialectConfig DialectConfig, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(dialect.DriverName(), dialect.DSN(dialectConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Apply dialect-specific configuration
	if err := dialect.ConfigureConnection(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	db := &DB{
		DB:               sqlDB,
		Dialect:          dialect,
		txMaxAttempts:    defaultTxMaxAttempts,
		txInitialBackoff: defaultTxInitialBackoff,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// QueryContext executes a query with automatic placeholder rewriting
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// QueryRowContext executes a query that returns a single row with automatic placeholder rewriting
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// ExecContext executes a query that doesn't return rows with automatic placeholder rewriting
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.Dialect.RewriteQuery(query), args...)
}
