package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"familytasks/internal/service"
)

// TaskHandler serves task endpoints
type TaskHandler struct {
	tasks  *service.TaskService
	logger zerolog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *service.TaskService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	AssignedTo string `json:"assigned_to"`
	Title      string `json:"title"`
}

// CreateTask handles POST /families/{id}/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"), req.AssignedTo, req.Title)
	if err != nil {
		respondWithError(w, h.logger, "create task failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, newTaskView(task))
}

// ListTasks handles GET /families/{id}/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListFamilyTasks(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, "list tasks failed", err)
		return
	}

	views := make([]taskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, newTaskView(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetTask handles GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.GetTask(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, "get task failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskView(task))
}

// CompleteTask handles POST /tasks/{id}/complete
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.CompleteTask(r.Context(), GetCallerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, "complete task failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskView(task))
}
