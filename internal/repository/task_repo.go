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

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db database.Querier
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db database.Querier) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = "id, family_id, assigned_to, title, status, created_by, completed_at, created_at, updated_at"

// CreateTask inserts a new task
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, family_id, assigned_to, title, status, created_by, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.FamilyID,
		task.AssignedTo,
		task.Title,
		string(task.Status),
		task.CreatedBy,
		nullTime(task.CompletedAt),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTaskByID retrieves a task by ID
func (r *TaskRepository) GetTaskByID(ctx context.Context, taskID string) (*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE id = ?"
	task, err := scanTask(r.db.QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// GetTasksByFamily retrieves every task of a family, oldest first
func (r *TaskRepository) GetTasksByFamily(ctx context.Context, familyID string) ([]models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE family_id = ? ORDER BY created_at ASC, id ASC"
	return r.queryTasks(ctx, query, familyID)
}

// ListAssignedTo retrieves the tasks of a family assigned to one user
func (r *TaskRepository) ListAssignedTo(ctx context.Context, familyID, userID string) ([]models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE family_id = ? AND assigned_to = ? ORDER BY created_at ASC, id ASC"
	return r.queryTasks(ctx, query, familyID, userID)
}

// ListOrphaned retrieves tasks of a family whose assignee is no longer a member
func (r *TaskRepository) ListOrphaned(ctx context.Context, familyID string) ([]models.Task, error) {
	query := "SELECT " + taskColumns + ` FROM tasks
		WHERE family_id = ?
		AND assigned_to NOT IN (SELECT id FROM users WHERE family_id = ?)
		ORDER BY created_at ASC, id ASC`
	return r.queryTasks(ctx, query, familyID, familyID)
}

// ReassignTasks moves every task in the family assigned to fromUserID onto toUserID.
// Only assigned_to and updated_at change. Returns the IDs of the moved tasks.
func (r *TaskRepository) ReassignTasks(ctx context.Context, familyID, fromUserID, toUserID string, now time.Time) ([]string, error) {
	query := "SELECT id FROM tasks WHERE family_id = ? AND assigned_to = ? ORDER BY created_at ASC, id ASC" + r.db.GetDialect().ForUpdate()
	rows, err := r.db.QueryContext(ctx, query, familyID, fromUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks to reassign: %w", err)
	}

	taskIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		taskIDs = append(taskIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate tasks to reassign: %w", err)
	}
	rows.Close()

	if len(taskIDs) == 0 {
		return taskIDs, nil
	}

	update := "UPDATE tasks SET assigned_to = ?, updated_at = ? WHERE family_id = ? AND assigned_to = ?"
	if _, err := r.db.ExecContext(ctx, update, toUserID, now, familyID, fromUserID); err != nil {
		return nil, fmt.Errorf("failed to reassign tasks: %w", err)
	}

	return taskIDs, nil
}

// UpdateTaskStatus changes the status of a task
func (r *TaskRepository) UpdateTaskStatus(ctx context.Context, task *models.Task) error {
	query := "UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, string(task.Status), nullTime(task.CompletedAt), task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task        models.Task
		status      string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.FamilyID,
		&task.AssignedTo,
		&task.Title,
		&status,
		&task.CreatedBy,
		&completedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStatus(status)
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
