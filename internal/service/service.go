package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"familytasks/internal/credentials"
	apperrors "familytasks/internal/errors"
	"familytasks/internal/models"
	"familytasks/internal/repository"
)

// Limits are the member caps given to new families
type Limits struct {
	DefaultMaxMembers int
	PremiumMaxMembers int
}

// DefaultLimits returns the standard and premium member caps
func DefaultLimits() Limits {
	return Limits{
		DefaultMaxMembers: models.DefaultMaxMembers,
		PremiumMaxMembers: models.PremiumMaxMembers,
	}
}

// Option customizes a service
type Option func(*engine)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(e *engine) {
		e.now = now
	}
}

// WithCodeGenerator replaces the invite code generator
func WithCodeGenerator(generate credentials.CodeGenerator) Option {
	return func(e *engine) {
		e.generateCode = generate
	}
}

// WithIDGenerator replaces the generator for family, task and event IDs
func WithIDGenerator(newID func() string) Option {
	return func(e *engine) {
		e.newID = newID
	}
}

// engine holds what every service needs: the store, a logger and the
// replaceable sources of time, IDs and invite codes
type engine struct {
	store        *repository.Store
	logger       zerolog.Logger
	now          func() time.Time
	newID        func() string
	generateCode credentials.CodeGenerator
}

func newEngine(store *repository.Store, logger zerolog.Logger, opts []Option) engine {
	e := engine{
		store:        store,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		generateCode: credentials.GenerateInviteCode,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// requireCaller rejects calls without an authenticated identity
func requireCaller(callerID string) error {
	if strings.TrimSpace(callerID) == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}
	return nil
}

// loadCaller records the caller on first sight and returns their row locked
func (e *engine) loadCaller(ctx context.Context, tx *repository.Tx, callerID string, now time.Time) (*models.User, error) {
	if err := tx.Users.EnsureUser(ctx, callerID, now); err != nil {
		return nil, err
	}
	user, err := tx.Users.GetUserByIDForUpdate(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s missing after insert", callerID)
	}
	return user, nil
}

// reserveInviteCode returns a code no family currently holds. A collision at
// write time fails the transaction with a unique violation and it re-runs.
func (e *engine) reserveInviteCode(ctx context.Context, tx *repository.Tx) (string, error) {
	for attempt := 1; attempt <= credentials.MaxInviteCodeAttempts; attempt++ {
		code, err := e.generateCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}

		inUse, err := tx.Families.InviteCodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}

		e.logger.Warn().Int("attempt", attempt).Msg("invite code collision, regenerating")
	}
	return "", apperrors.New(apperrors.CodeTransactionConflict, "could not reserve a unique invite code")
}

// appendEvent writes a domain event to the outbox inside tx
func (e *engine) appendEvent(ctx context.Context, tx *repository.Tx, eventType, familyID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	return tx.Outbox.AppendEvent(ctx, &models.OutboxEvent{
		ID:        e.newID(),
		Type:      eventType,
		FamilyID:  familyID,
		Payload:   body,
		CreatedAt: e.now(),
	})
}

// activeFamily loads and locks a family, returning nil when it is unknown or dissolved
func activeFamily(ctx context.Context, tx *repository.Tx, familyID string) (*models.Family, error) {
	family, err := tx.Families.GetFamilyByIDForUpdate(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil || family.IsDissolved() {
		return nil, nil
	}
	return family, nil
}
