package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"familytasks/internal/database"
	"familytasks/internal/models"
)

// UserRepository handles database operations for users and their membership
type UserRepository struct {
	db database.Querier
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, family_id, role, joined_at, created_at, updated_at"

// EnsureUser records an identity the first time it is seen
func (r *UserRepository) EnsureUser(ctx context.Context, userID string, now time.Time) error {
	query := r.db.GetDialect().InsertUserIfMissing()
	if _, err := r.db.ExecContext(ctx, query, userID, now, now); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	return r.getUser(ctx, query, userID)
}

// GetUserByIDForUpdate retrieves a user by ID and locks the row for the rest of the transaction
func (r *UserRepository) GetUserByIDForUpdate(ctx context.Context, userID string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?" + r.db.GetDialect().ForUpdate()
	return r.getUser(ctx, query, userID)
}

func (r *UserRepository) getUser(ctx context.Context, query, userID string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetMembership places a user in a family with the given role
func (r *UserRepository) SetMembership(ctx context.Context, userID, familyID string, role models.Role, joinedAt time.Time) error {
	query := "UPDATE users SET family_id = ?, role = ?, joined_at = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, familyID, string(role), joinedAt, joinedAt, userID)
	if err != nil {
		return fmt.Errorf("failed to set membership: %w", err)
	}
	return expectOneRow(result, "set membership")
}

// ClearMembership removes a user from whatever family they belong to
func (r *UserRepository) ClearMembership(ctx context.Context, userID string, now time.Time) error {
	query := "UPDATE users SET family_id = NULL, role = NULL, joined_at = NULL, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, now, userID); err != nil {
		return fmt.Errorf("failed to clear membership: %w", err)
	}
	return nil
}

// UpdateRole changes the role of a user inside their current family
func (r *UserRepository) UpdateRole(ctx context.Context, userID, familyID string, role models.Role, now time.Time) error {
	query := "UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND family_id = ?"
	result, err := r.db.ExecContext(ctx, query, string(role), now, userID, familyID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return expectOneRow(result, "update role")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		familyID sql.NullString
		role     sql.NullString
		joinedAt sql.NullTime
	)
	if err := row.Scan(&user.ID, &familyID, &role, &joinedAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if familyID.Valid && familyID.String != "" {
		user.FamilyID = &familyID.String
		user.Role = models.ParseRole(role.String)
	}
	if joinedAt.Valid {
		user.JoinedAt = &joinedAt.Time
	}
	return &user, nil
}

func expectOneRow(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n != 1 {
		return fmt.Errorf("failed to %s: %d rows affected", op, n)
	}
	return nil
}
