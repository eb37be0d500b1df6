package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"familytasks/internal/database"
	"familytasks/internal/models"
)

// OutboxRepository stores domain events until the relay publishes them
type OutboxRepository struct {
	db database.Querier
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db database.Querier) *OutboxRepository {
	return &OutboxRepository{db: db}
}

const outboxColumns = "id, event_type, family_id, payload, attempts, last_error, created_at, published_at"

// AppendEvent records an event in the current transaction
func (r *OutboxRepository) AppendEvent(ctx context.Context, event *models.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, event_type, family_id, payload, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`
	_, err := r.db.ExecContext(ctx, query, event.ID, event.Type, event.FamilyID, string(event.Payload), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	return nil
}

// ListUnpublished retrieves the oldest unpublished events
func (r *OutboxRepository) ListUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := "SELECT " + outboxColumns + " FROM outbox_events WHERE published_at IS NULL ORDER BY created_at ASC, id ASC LIMIT ?"
	return r.queryEvents(ctx, query, limit)
}

// ListByFamily retrieves every event recorded for a family, oldest first
func (r *OutboxRepository) ListByFamily(ctx context.Context, familyID string) ([]models.OutboxEvent, error) {
	query := "SELECT " + outboxColumns + " FROM outbox_events WHERE family_id = ? ORDER BY created_at ASC, id ASC"
	return r.queryEvents(ctx, query, familyID)
}

// MarkPublished records a successful delivery
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string, at time.Time) error {
	query := "UPDATE outbox_events SET published_at = ?, attempts = attempts + 1, last_error = NULL WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, at, eventID); err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}
	return nil
}

// RecordFailure records a failed delivery attempt
func (r *OutboxRepository) RecordFailure(ctx context.Context, eventID string, cause error) error {
	query := "UPDATE outbox_events SET attempts = attempts + 1, last_error = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, cause.Error(), eventID); err != nil {
		return fmt.Errorf("failed to record publish failure: %w", err)
	}
	return nil
}

func (r *OutboxRepository) queryEvents(ctx context.Context, query string, args ...any) ([]models.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	events := []models.OutboxEvent{}
	for rows.Next() {
		var (
			event       models.OutboxEvent
			payload     string
			lastError   sql.NullString
			publishedAt sql.NullTime
		)
		err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.FamilyID,
			&payload,
			&event.Attempts,
			&lastError,
			&event.CreatedAt,
			&publishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		event.Payload = []byte(payload)
		event.LastError = lastError.String
		if publishedAt.Valid {
			event.PublishedAt = &publishedAt.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}

	return events, nil
}
