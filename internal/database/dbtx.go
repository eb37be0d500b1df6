package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "familytasks/internal/errors"
)

// Querier defines the database operations needed by repositories.
// It is satisfied by both *DB and *Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	GetDialect() Dialect
}

// Tx wraps sql.Tx with dialect-aware methods
type Tx struct {
	*sql.Tx
	dialect Dialect
}

// BeginTx starts a new transaction with the dialect's isolation settings
func (db *DB) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, db.Dialect.TxOptions())
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, dialect: db.Dialect}, nil
}

// GetDialect returns the database dialect
func (db *DB) GetDialect() Dialect {
	return db.Dialect
}

// QueryContext executes a query with automatic placeholder rewriting
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.Tx.QueryContext(ctx, tx.dialect.RewriteQuery(query), args...)
}

// QueryRowContext executes a query that returns a single row with automatic placeholder rewriting
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.Tx.QueryRowContext(ctx, tx.dialect.RewriteQuery(query), args...)
}

// ExecContext executes a query that doesn't return rows with automatic placeholder rewriting
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.Tx.ExecContext(ctx, tx.dialect.RewriteQuery(query), args...)
}

// GetDialect returns the transaction's dialect
func (tx *Tx) GetDialect() Dialect {
	return tx.dialect
}

// RunInTx runs fn inside a transaction and commits it. Serialization failures,
// deadlocks, busy databases and unique violations roll back and re-run fn with
// exponential backoff until the attempt budget is spent, which surfaces
// TRANSACTION_CONFLICT. Domain errors from fn are returned unchanged and
// infrastructure failures are wrapped as STORE_UNAVAILABLE.
func (db *DB) RunInTx(ctx context.Context, fn func(tx *Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = db.txInitialBackoff
	b.MaxInterval = 50 * db.txInitialBackoff

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := db.runOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if db.conflict(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		db.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("retrying transaction after conflict")
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(db.txMaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return nil
	}
	if db.conflict(err) {
		return apperrors.Wrap(apperrors.CodeTransactionConflict, "transaction conflict persisted after retries", err)
	}
	if apperrors.IsDomain(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeStoreUnavailable, "transaction failed", err)
}

func (db *DB) runOnce(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return storeError("failed to begin transaction", err, db.Dialect)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Error().Err(rbErr).Msg("failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeError("failed to commit transaction", err, db.Dialect)
	}
	return nil
}

func (db *DB) conflict(err error) bool {
	if apperrors.IsCode(err, apperrors.CodeTransactionConflict) {
		return true
	}
	return db.Dialect.IsRetryable(err) || db.Dialect.IsUniqueViolation(err)
}

// storeError keeps conflicts raw so RunInTx can classify them and marks
// everything else as STORE_UNAVAILABLE
func storeError(message string, err error, dialect Dialect) error {
	if dialect.IsRetryable(err) || dialect.IsUniqueViolation(err) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeStoreUnavailable, message, err)
}
