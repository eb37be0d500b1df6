package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"familytasks/internal/models"
	"familytasks/internal/telemetry"
)

// DefaultBatchSize is how many events a relay pass reads when none is configured
const DefaultBatchSize = 100

// OutboxStore is the slice of the outbox repository the relay needs
type OutboxStore interface {
	ListUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string, at time.Time) error
	RecordFailure(ctx context.Context, eventID string, cause error) error
}

// Relay drains committed outbox events to a publisher. Delivery is at least
// once: an event is marked published only after Publish returns nil, which for
// AMQPPublisher means the broker confirmed it.
type Relay struct {
	outbox    OutboxStore
	publisher Publisher
	logger    zerolog.Logger
	batchSize int
	now       func() time.Time
}

// NewRelay creates a relay reading at most batchSize events per pass
func NewRelay(outbox OutboxStore, publisher Publisher, batchSize int, logger zerolog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce publishes one batch in commit order. A failed event is recorded and
// the pass moves on. Returns how many events were published.
func (r *Relay) RunOnce(ctx context.Context) (published int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "outbox.RunOnce")
	defer func() { telemetry.EndSpan(span, err) }()

	batch, err := r.outbox.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, event := range batch {
		if err := ctx.Err(); err != nil {
			return published, err
		}

		if pubErr := r.publisher.Publish(ctx, event); pubErr != nil {
			failed++
			r.logger.Warn().
				Err(pubErr).
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Int("attempts", event.Attempts+1).
				Msg("failed to publish outbox event")
			if err := r.outbox.RecordFailure(ctx, event.ID, pubErr); err != nil {
				return published, err
			}
			continue
		}

		if err := r.outbox.MarkPublished(ctx, event.ID, r.now()); err != nil {
			return published, err
		}
		published++
	}

	if len(batch) > 0 {
		r.logger.Info().
			Int("published", published).
			Int("failed", failed).
			Msg("outbox relay pass finished")
	}
	return published, nil
}
