package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"familytasks/internal/database"
	"familytasks/internal/models"
)

// ReassignmentRepository stores pending task handoffs for removed members
type ReassignmentRepository struct {
	db database.Querier
}

// NewReassignmentRepository creates a new reassignment repository
func NewReassignmentRepository(db database.Querier) *ReassignmentRepository {
	return &ReassignmentRepository{db: db}
}

const reassignmentColumns = "family_id, user_id, fallback_owner_id, requested_by, created_at"

// SavePending records a pending reassignment, replacing any older marker for the same member
func (r *ReassignmentRepository) SavePending(ctx context.Context, p *models.PendingReassignment) error {
	if err := r.DeletePending(ctx, p.FamilyID, p.UserID); err != nil {
		return err
	}

	query := `
		INSERT INTO pending_reassignments (family_id, user_id, fallback_owner_id, requested_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, p.FamilyID, p.UserID, p.FallbackOwnerID, p.RequestedBy, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pending reassignment: %w", err)
	}
	return nil
}

// GetPendingForUpdate retrieves and locks the marker for a removed member.
// Returns nil when no handoff is outstanding.
func (r *ReassignmentRepository) GetPendingForUpdate(ctx context.Context, familyID, userID string) (*models.PendingReassignment, error) {
	query := "SELECT " + reassignmentColumns + " FROM pending_reassignments WHERE family_id = ? AND user_id = ?" + r.db.GetDialect().ForUpdate()

	var p models.PendingReassignment
	err := r.db.QueryRowContext(ctx, query, familyID, userID).Scan(&p.FamilyID, &p.UserID, &p.FallbackOwnerID, &p.RequestedBy, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending reassignment: %w", err)
	}
	return &p, nil
}

// DeletePending removes the marker for a member
func (r *ReassignmentRepository) DeletePending(ctx context.Context, familyID, userID string) error {
	query := "DELETE FROM pending_reassignments WHERE family_id = ? AND user_id = ?"
	if _, err := r.db.ExecContext(ctx, query, familyID, userID); err != nil {
		return fmt.Errorf("failed to delete pending reassignment: %w", err)
	}
	return nil
}

// ListPending retrieves every outstanding marker, oldest first
func (r *ReassignmentRepository) ListPending(ctx context.Context) ([]models.PendingReassignment, error) {
	query := "SELECT " + reassignmentColumns + " FROM pending_reassignments ORDER BY created_at ASC, family_id ASC, user_id ASC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reassignments: %w", err)
	}
	defer rows.Close()

	pending := []models.PendingReassignment{}
	for rows.Next() {
		var p models.PendingReassignment
		if err := rows.Scan(&p.FamilyID, &p.UserID, &p.FallbackOwnerID, &p.RequestedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending reassignment: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending reassignments: %w", err)
	}

	return pending, nil
}
