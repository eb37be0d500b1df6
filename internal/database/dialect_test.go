package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("DSN", func(t *testing.T) {
		result := dialect.DSN(DialectConfig{Path: "family.db"})
		if !strings.HasPrefix(result, "family.db?") || !strings.Contains(result, "_txlock=immediate") {
			t.Errorf("DSN() = %v, want immediate transactions on family.db", result)
		}
	})

	t.Run("ForUpdate", func(t *testing.T) {
		if dialect.ForUpdate() != "" {
			t.Error("ForUpdate() should be empty for SQLite")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("TxOptions", func(t *testing.T) {
		opts := dialect.TxOptions()
		if opts == nil || opts.Isolation != sql.LevelSerializable {
			t.Errorf("TxOptions() = %+v, want serializable isolation", opts)
		}
	})

	t.Run("ForUpdate", func(t *testing.T) {
		if dialect.ForUpdate() != " FOR UPDATE" {
			t.Errorf("ForUpdate() = %q", dialect.ForUpdate())
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "postgres"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("DSN enables parseTime", func(t *testing.T) {
		result := dialect.DSN(DialectConfig{URL: "app:secret@tcp(localhost:3306)/familytasks"})
		if !strings.Contains(result, "parseTime=true") {
			t.Errorf("DSN() = %v, want parseTime=true", result)
		}
	})

	t.Run("TxOptions", func(t *testing.T) {
		opts := dialect.TxOptions()
		if opts == nil || opts.Isolation != sql.LevelReadCommitted {
			t.Errorf("TxOptions() = %+v, want read committed isolation", opts)
		}
	})

	t.Run("ForUpdate", func(t *testing.T) {
		if dialect.ForUpdate() != " FOR UPDATE" {
			t.Errorf("ForUpdate() = %q", dialect.ForUpdate())
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "UPDATE tasks SET assigned_to = ?, updated_at = ? WHERE family_id = ? AND assigned_to = ?",
			expected: "UPDATE tasks SET assigned_to = $1, updated_at = $2 WHERE family_id = $3 AND assigned_to = $4",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE users SET family_id = ?, role = ? WHERE id = ?",
			expected: "UPDATE users SET family_id = ?, role = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		dialect       Dialect
		err           error
		wantRetryable bool
		wantUnique    bool
	}{
		{
			name:          "sqlite busy",
			dialect:       NewSQLiteDialect(),
			err:           sqlite3.Error{Code: sqlite3.ErrBusy},
			wantRetryable: true,
		},
		{
			name:          "sqlite locked wrapped",
			dialect:       NewSQLiteDialect(),
			err:           fmt.Errorf("failed to update: %w", sqlite3.Error{Code: sqlite3.ErrLocked}),
			wantRetryable: true,
		},
		{
			name:       "sqlite unique",
			dialect:    NewSQLiteDialect(),
			err:        sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			wantUnique: true,
		},
		{
			name:          "postgres serialization failure",
			dialect:       NewPostgresDialect(),
			err:           &pq.Error{Code: "40001"},
			wantRetryable: true,
		},
		{
			name:          "postgres deadlock",
			dialect:       NewPostgresDialect(),
			err:           &pq.Error{Code: "40P01"},
			wantRetryable: true,
		},
		{
			name:       "postgres unique",
			dialect:    NewPostgresDialect(),
			err:        &pq.Error{Code: "23505"},
			wantUnique: true,
		},
		{
			name:          "mysql deadlock",
			dialect:       NewMySQLDialect(),
			err:           &mysql.MySQLError{Number: 1213},
			wantRetryable: true,
		},
		{
			name:       "mysql duplicate",
			dialect:    NewMySQLDialect(),
			err:        &mysql.MySQLError{Number: 1062},
			wantUnique: true,
		},
		{
			name:    "plain error",
			dialect: NewPostgresDialect(),
			err:     errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsRetryable(tt.err); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
			if got := tt.dialect.IsUniqueViolation(tt.err); got != tt.wantUnique {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.wantUnique)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (id TEXT);

CREATE INDEX idx_a ON a(id);
`
	got := splitStatements(content)
	if len(got) != 2 {
		t.Fatalf("splitStatements() returned %d statements, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id TEXT)" {
		t.Errorf("first statement = %q", got[0])
	}
}
