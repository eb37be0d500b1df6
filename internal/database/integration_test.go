package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "familytasks/internal/errors"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"), WithRetry(3, time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	// Test that tables were created by migrations
	tables := []string{"users", "families", "tasks", "pending_reassignments", "outbox_events", "migrations"}

	for _, table := range tables {
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// Running again is a no-op
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations").Scan(&count); err != nil {
		t.Fatalf("Failed to count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 recorded migrations, got %d", count)
	}
}

// TestRunInTx tests commit and rollback through the transaction primitive
func TestRunInTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := db.RunInTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, tx.GetDialect().InsertUserIfMissing(), "user-1", now, now)
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx commit failed: %v", err)
	}

	errAbort := apperrors.New(apperrors.CodeNotAuthorized, "abort")
	err = db.RunInTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, tx.GetDialect().InsertUserIfMissing(), "user-2", now, now); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("Expected abort error, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 user after rollback, got %d", count)
	}

	// Inserting an existing user is ignored
	err = db.RunInTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, tx.GetDialect().InsertUserIfMissing(), "user-1", now, now)
		return err
	})
	if err != nil {
		t.Fatalf("Duplicate insert should be ignored, got %v", err)
	}
}

func TestRunInTxRetriesConflicts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	attempts := 0
	err := db.RunInTx(ctx, func(tx *Tx) error {
		attempts++
		if attempts < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRunInTxConflictExhaustion(t *testing.T) {
	db := openTestDB(t)

	attempts := 0
	err := db.RunInTx(context.Background(), func(tx *Tx) error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	if !apperrors.IsCode(err, apperrors.CodeTransactionConflict) {
		t.Fatalf("Expected TRANSACTION_CONFLICT, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRunInTxDoesNotRetryDomainErrors(t *testing.T) {
	db := openTestDB(t)

	attempts := 0
	err := db.RunInTx(context.Background(), func(tx *Tx) error {
		attempts++
		return apperrors.New(apperrors.CodeFamilyFull, "full")
	})
	if !apperrors.IsCode(err, apperrors.CodeFamilyFull) {
		t.Fatalf("Expected FAMILY_FULL, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRunInTxWrapsStoreFailures(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.RunInTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO no_such_table (id) VALUES (?)", "x")
		return err
	})
	if !apperrors.IsCode(err, apperrors.CodeStoreUnavailable) {
		t.Fatalf("Expected STORE_UNAVAILABLE, got %v", err)
	}
}

// TestConcurrentTransactions tests that concurrent writers serialize
func TestConcurrentTransactions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- db.RunInTx(ctx, func(tx *Tx) error {
				var n int
				if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, tx.GetDialect().InsertUserIfMissing(), "user-"+string(rune('a'+i)), now, now)
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent transaction failed: %v", err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != writers {
		t.Errorf("Expected %d users, got %d", writers, count)
	}
}
