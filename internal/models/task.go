package models

import "time"

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the task can no longer change status
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// Task is a unit of work owned by one family member
type Task struct {
	ID          string
	FamilyID    string
	AssignedTo  string
	Title       string
	Status      TaskStatus
	CreatedBy   string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
