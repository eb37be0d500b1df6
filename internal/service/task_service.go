package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	apperrors "familytasks/internal/errors"
	"familytasks/internal/models"
	"familytasks/internal/repository"
	"familytasks/internal/telemetry"
	"familytasks/internal/validation"
)

// TaskService creates and completes tasks. Assignees must be current family members.
type TaskService struct {
	engine
}

// NewTaskService creates a new task service
func NewTaskService(store *repository.Store, logger zerolog.Logger, opts ...Option) *TaskService {
	return &TaskService{engine: newEngine(store, logger, opts)}
}

func notAuthorized(familyID string) error {
	return apperrors.WithMetadata(apperrors.CodeNotAuthorized, "caller is not a member of this family", map[string]string{"family_id": familyID})
}

// CreateTask creates a pending task in familyID assigned to assignedTo
func (s *TaskService) CreateTask(ctx context.Context, callerID, familyID, assignedTo, title string) (task *models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.CreateTask")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if err := validation.ValidateTaskTitle(title); err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		// Locking the family keeps the membership check valid until commit
		family, err := activeFamily(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if family == nil || !family.IsMember(callerID) {
			return notAuthorized(familyID)
		}
		if !family.IsMember(assignedTo) {
			return apperrors.WithMetadata(apperrors.CodeCannotAssignToNonMember, "assignee is not a member of this family", map[string]string{"user_id": assignedTo})
		}

		now := s.now()
		t := &models.Task{
			ID:         s.newID(),
			FamilyID:   familyID,
			AssignedTo: assignedTo,
			Title:      strings.TrimSpace(title),
			Status:     models.TaskPending,
			CreatedBy:  callerID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Tasks.CreateTask(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("family_id", familyID).
		Str("task_id", task.ID).
		Str("assigned_to", assignedTo).
		Msg("task created")
	return task, nil
}

// GetTask returns a task to a member of its family
func (s *TaskService) GetTask(ctx context.Context, callerID, taskID string) (task *models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.GetTask")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		t, err := s.memberTask(ctx, tx, callerID, taskID)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteTask marks a task completed. Completing a completed or cancelled task changes nothing.
func (s *TaskService) CompleteTask(ctx context.Context, callerID, taskID string) (task *models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.CompleteTask")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		t, err := s.memberTask(ctx, tx, callerID, taskID)
		if err != nil {
			return err
		}
		task = t
		if t.Status.IsTerminal() {
			return nil
		}

		now := s.now()
		t.Status = models.TaskCompleted
		t.CompletedAt = &now
		t.UpdatedAt = now
		return tx.Tasks.UpdateTaskStatus(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("family_id", task.FamilyID).
		Str("task_id", task.ID).
		Str("user_id", callerID).
		Msg("task completed")
	return task, nil
}

// ListFamilyTasks lists every task of a family to one of its members
func (s *TaskService) ListFamilyTasks(ctx context.Context, callerID, familyID string) (tasks []models.Task, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.ListFamilyTasks")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		caller, err := tx.Users.GetUserByID(ctx, callerID)
		if err != nil {
			return err
		}
		if caller == nil || !caller.InFamily(familyID) {
			return notAuthorized(familyID)
		}
		tasks, err = tx.Tasks.GetTasksByFamily(ctx, familyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// memberTask loads a task and checks that the caller belongs to its family
func (s *TaskService) memberTask(ctx context.Context, tx *repository.Tx, callerID, taskID string) (*models.Task, error) {
	task, err := tx.Tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperrors.WithMetadata(apperrors.CodeTaskNotFound, "task not found", map[string]string{"task_id": taskID})
	}

	caller, err := tx.Users.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller == nil || !caller.InFamily(task.FamilyID) {
		return nil, notAuthorized(task.FamilyID)
	}
	return task, nil
}
