package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	apperrors "familytasks/internal/errors"
	"familytasks/internal/models"
	"familytasks/internal/repository"
	"familytasks/internal/telemetry"
)

// ReassignmentService moves a removed member's tasks to the fallback owner
type ReassignmentService struct {
	engine
}

// NewReassignmentService creates a new reassignment service
func NewReassignmentService(store *repository.Store, logger zerolog.Logger, opts ...Option) *ReassignmentService {
	return &ReassignmentService{engine: newEngine(store, logger, opts)}
}

// ReassignOnRemoval completes the task handoff recorded when removedUserID was
// removed from familyID. It is idempotent: without an outstanding marker it
// returns no task IDs and changes nothing. Only assignee and update time change,
// so completed and cancelled tasks keep their status and completion time.
func (s *ReassignmentService) ReassignOnRemoval(ctx context.Context, familyID, removedUserID string) (taskIDs []string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.ReassignOnRemoval")
	defer func() { telemetry.EndSpan(span, err) }()

	var fallback string
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		taskIDs, fallback = []string{}, ""

		removed, err := tx.Users.GetUserByIDForUpdate(ctx, removedUserID)
		if err != nil {
			return err
		}
		family, err := tx.Families.GetFamilyByIDForUpdate(ctx, familyID)
		if err != nil {
			return err
		}
		marker, err := tx.Reassignments.GetPendingForUpdate(ctx, familyID, removedUserID)
		if err != nil {
			return err
		}
		if marker == nil {
			return nil
		}

		// Rejoined since the removal: the tasks are theirs again
		if removed != nil && removed.InFamily(familyID) {
			s.logger.Info().
				Str("family_id", familyID).
				Str("user_id", removedUserID).
				Msg("removed member rejoined, dropping pending reassignment")
			return tx.Reassignments.DeletePending(ctx, familyID, removedUserID)
		}

		fallback = resolveFallback(family, marker.FallbackOwnerID)
		if fallback == "" {
			s.logger.Warn().
				Str("family_id", familyID).
				Str("user_id", removedUserID).
				Msg("no parent left to receive tasks, dropping pending reassignment")
			return tx.Reassignments.DeletePending(ctx, familyID, removedUserID)
		}

		moved, err := tx.Tasks.ReassignTasks(ctx, familyID, removedUserID, fallback, s.now())
		if err != nil {
			return err
		}
		if err := tx.Reassignments.DeletePending(ctx, familyID, removedUserID); err != nil {
			return err
		}

		taskIDs = moved
		return s.appendEvent(ctx, tx, models.EventTasksReassigned, familyID, tasksReassignedPayload{
			FamilyID:        familyID,
			RemovedUserID:   removedUserID,
			FallbackOwnerID: fallback,
			TaskIDs:         moved,
		})
	})
	if err != nil {
		return nil, err
	}

	if fallback != "" {
		s.logger.Info().
			Str("family_id", familyID).
			Str("user_id", removedUserID).
			Str("fallback_owner_id", fallback).
			Int("tasks", len(taskIDs)).
			Msg("tasks reassigned")
	}
	return taskIDs, nil
}

// resolveFallback keeps the recorded owner while they are still a member,
// otherwise picks the earliest-joined remaining parent. Returns "" when the
// family has no parent left.
func resolveFallback(family *models.Family, recorded string) string {
	if family == nil || family.IsDissolved() {
		return ""
	}
	if family.IsMember(recorded) {
		return recorded
	}
	for _, m := range family.Members {
		if m.Role == models.RoleParent {
			return m.UserID
		}
	}
	return ""
}

// RepairPendingReassignments re-runs every outstanding handoff. It is safe to
// run any number of times and returns how many markers it resolved.
func (s *ReassignmentService) RepairPendingReassignments(ctx context.Context) (repaired int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.RepairPendingReassignments")
	defer func() { telemetry.EndSpan(span, err) }()

	pending, err := s.store.Reassignments.ListPending(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to list pending reassignments", err)
	}

	var errs []error
	for _, p := range pending {
		if _, err := s.ReassignOnRemoval(ctx, p.FamilyID, p.UserID); err != nil {
			errs = append(errs, fmt.Errorf("family %s user %s: %w", p.FamilyID, p.UserID, err))
			continue
		}
		repaired++
	}

	s.logger.Info().
		Int("pending", len(pending)).
		Int("repaired", repaired).
		Msg("pending reassignments repaired")
	return repaired, errors.Join(errs...)
}

// FindOrphanedTasks lists tasks of a family assigned to users who are no
// longer members, typically left behind by a voluntary leave
func (s *ReassignmentService) FindOrphanedTasks(ctx context.Context, familyID string) (tasks []models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.FindOrphanedTasks")
	defer func() { telemetry.EndSpan(span, err) }()

	tasks, err = s.store.Tasks.ListOrphaned(ctx, familyID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to list orphaned tasks", err)
	}
	return tasks, nil
}
