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

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db database.Querier
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db database.Querier) *FamilyRepository {
	return &FamilyRepository{db: db}
}

const familyColumns = "id, name, invite_code, created_by, max_members, is_premium, created_at, updated_at, dissolved_at"

// CreateFamily inserts a new family row. Members are attached through the user repository.
func (r *FamilyRepository) CreateFamily(ctx context.Context, family *models.Family) error {
	query := `
		INSERT INTO families (id, name, invite_code, created_by, max_members, is_premium, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		family.ID,
		family.Name,
		nullString(family.InviteCode),
		family.CreatedBy,
		family.MaxMembers,
		family.IsPremium,
		family.CreatedAt,
		family.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create family: %w", err)
	}
	return nil
}

// GetFamilyByID retrieves a family and its members by ID
func (r *FamilyRepository) GetFamilyByID(ctx context.Context, familyID string) (*models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families WHERE id = ?"
	return r.getFamily(ctx, query, familyID)
}

// GetFamilyByIDForUpdate retrieves a family and locks its row for the rest of the transaction.
// Every membership change takes this lock, which serializes capacity and last-parent checks.
func (r *FamilyRepository) GetFamilyByIDForUpdate(ctx context.Context, familyID string) (*models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families WHERE id = ?" + r.db.GetDialect().ForUpdate()
	return r.getFamily(ctx, query, familyID)
}

// GetFamilyIDByInviteCode resolves an active invite code and locks the family row.
// Returns "" when no family uses it. The lookup is a locking read so that a join
// takes no snapshot before it holds the family lock.
func (r *FamilyRepository) GetFamilyIDByInviteCode(ctx context.Context, code string) (string, error) {
	var familyID string
	query := "SELECT id FROM families WHERE invite_code = ? AND dissolved_at IS NULL" + r.db.GetDialect().ForUpdate()
	err := r.db.QueryRowContext(ctx, query, code).Scan(&familyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up invite code: %w", err)
	}
	return familyID, nil
}

// InviteCodeInUse reports whether any family currently holds the code
func (r *FamilyRepository) InviteCodeInUse(ctx context.Context, code string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM families WHERE invite_code = ?"
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check invite code: %w", err)
	}
	return count > 0, nil
}

// UpdateFamily persists the mutable fields of a family
func (r *FamilyRepository) UpdateFamily(ctx context.Context, family *models.Family) error {
	query := "UPDATE families SET name = ?, invite_code = ?, max_members = ?, updated_at = ? WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, family.Name, nullString(family.InviteCode), family.MaxMembers, family.UpdatedAt, family.ID)
	if err != nil {
		return fmt.Errorf("failed to update family: %w", err)
	}
	return nil
}

// DissolveFamily tombstones an empty family and releases its invite code
func (r *FamilyRepository) DissolveFamily(ctx context.Context, familyID string, at time.Time) error {
	query := "UPDATE families SET invite_code = NULL, dissolved_at = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, at, at, familyID); err != nil {
		return fmt.Errorf("failed to dissolve family: %w", err)
	}
	return nil
}

// GetFamilyMembers retrieves the members of a family ordered by join time
func (r *FamilyRepository) GetFamilyMembers(ctx context.Context, familyID string) ([]models.Member, error) {
	query := `
		SELECT id, role, joined_at
		FROM users
		WHERE family_id = ?
		ORDER BY joined_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var (
			member   models.Member
			role     string
			joinedAt sql.NullTime
		)
		if err := rows.Scan(&member.UserID, &role, &joinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		member.Role = models.ParseRole(role)
		if joinedAt.Valid {
			member.JoinedAt = joinedAt.Time
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate family members: %w", err)
	}

	return members, nil
}

// ListFamilies retrieves every family, including dissolved ones, with members
func (r *FamilyRepository) ListFamilies(ctx context.Context) ([]models.Family, error) {
	query := "SELECT " + familyColumns + " FROM families ORDER BY created_at ASC, id ASC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}

	var families []models.Family
	for rows.Next() {
		family, err := scanFamily(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, *family)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate families: %w", err)
	}
	rows.Close()

	// Members are loaded after the cursor is closed; a transaction holds a single connection
	for i := range families {
		members, err := r.GetFamilyMembers(ctx, families[i].ID)
		if err != nil {
			return nil, err
		}
		families[i].Members = members
	}

	return families, nil
}

func (r *FamilyRepository) getFamily(ctx context.Context, query, familyID string) (*models.Family, error) {
	family, err := scanFamily(r.db.QueryRowContext(ctx, query, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	members, err := r.GetFamilyMembers(ctx, family.ID)
	if err != nil {
		return nil, err
	}
	family.Members = members

	return family, nil
}

func scanFamily(row rowScanner) (*models.Family, error) {
	var (
		family      models.Family
		inviteCode  sql.NullString
		dissolvedAt sql.NullTime
	)
	err := row.Scan(
		&family.ID,
		&family.Name,
		&inviteCode,
		&family.CreatedBy,
		&family.MaxMembers,
		&family.IsPremium,
		&family.CreatedAt,
		&family.UpdatedAt,
		&dissolvedAt,
	)
	if err != nil {
		return nil, err
	}
	family.InviteCode = inviteCode.String
	if dissolvedAt.Valid {
		family.DissolvedAt = &dissolvedAt.Time
	}
	return &family, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
