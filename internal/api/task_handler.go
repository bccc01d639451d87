package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/eco-queue/internal/api/shared"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/ratelimit"
	"github.com/phrazzld/eco-queue/internal/task"
)

const defaultListLimit = 100

// EnqueueRequest is the body of POST /tasks.
type EnqueueRequest struct {
	Type    string          `json:"type"    validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
	// ScheduledAt defers the task. DelaySeconds is added to it, or to now
	// when ScheduledAt is absent.
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	DelaySeconds int        `json:"delay_seconds,omitempty" validate:"gte=0"`
}

// EnqueueResponse is returned by POST /tasks.
type EnqueueResponse struct {
	ID    int64      `json:"id"`
	Queue task.Queue `json:"queue"`
}

// TaskResponse is the admin view of a task.
type TaskResponse struct {
	ID          int64           `json:"id"`
	Type        task.Type       `json:"type"`
	Queue       task.Queue      `json:"queue"`
	Status      task.Status     `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Error       string          `json:"error,omitempty"`
	// RemainingSeconds is how long a pending task has left before it is due.
	RemainingSeconds int       `json:"remaining_seconds,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	Counts              task.Counts `json:"counts"`
	GovernorWaitSeconds int         `json:"governor_wait_seconds"`
}

// ClearResponse is returned by DELETE /tasks.
type ClearResponse struct {
	Status  task.Status `json:"status"`
	Deleted int64       `json:"deleted"`
}

// TaskHandler serves the enqueue and admin task endpoints.
type TaskHandler struct {
	tasks     task.Store
	governor  ratelimit.Governor
	validator *validator.Validate
	logger    *slog.Logger

	// Now is injectable for tests.
	Now func() time.Time
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks task.Store, governor ratelimit.Governor, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		tasks:     tasks,
		governor:  governor,
		validator: validator.New(),
		logger:    logger.With(slog.String("component", "task_handler")),
		Now:       time.Now,
	}
}

// Enqueue handles POST /tasks.
func (h *TaskHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req EnqueueRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			"Validation error: "+SanitizeValidationError(err), err)
		return
	}

	typ := task.Type(req.Type)
	if _, err := task.Decode(typ, req.Payload); err != nil {
		msg := GetSafeErrorMessage(err)
		if errors.Is(err, task.ErrInvalidPayload) {
			msg += ": " + SanitizeValidationError(err)
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
		return
	}

	var at time.Time
	if req.ScheduledAt != nil {
		at = *req.ScheduledAt
	}
	if req.DelaySeconds > 0 {
		if at.IsZero() {
			at = h.Now()
		}
		at = at.Add(time.Duration(req.DelaySeconds) * time.Second)
	}

	id, err := h.tasks.Enqueue(r.Context(), typ, req.Payload, at)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to enqueue task")
		return
	}
	queue, _ := typ.Queue()

	log.Info("task enqueued via api",
		slog.Int64("task_id", id),
		slog.String("task_type", string(typ)))
	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{ID: id, Queue: queue})
}

// List handles GET /tasks?status=&queue=&limit=.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatus(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	queue, err := parseQueue(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.tasks.List(r.Context(), task.ListFilter{Status: status, Queue: queue, Limit: limit})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	now := h.Now()
	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, toTaskResponse(t, now))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toTaskResponse(t, h.Now()))
}

// Delete handles DELETE /tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.tasks.Delete(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /tasks?status=. Only terminal statuses can be cleared;
// the default is failed.
func (h *TaskHandler) Clear(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatus(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if status == "" {
		status = task.StatusFailed
	}
	if status != task.StatusFailed && status != task.StatusCompleted {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Only failed or completed tasks can be cleared")
		return
	}

	n, err := h.tasks.Clear(r.Context(), status)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to clear tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ClearResponse{Status: status, Deleted: n})
}

// Retry handles POST /tasks/{id}/retry.
func (h *TaskHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := getPathInt64(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.tasks.Retry(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to retry task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /stats.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.tasks.Counts(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to count tasks")
		return
	}
	wait, err := h.governor.WaitSeconds(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read rate limit state")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{Counts: counts, GovernorWaitSeconds: wait})
}

func toTaskResponse(t *task.Task, now time.Time) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Type:        t.Type,
		Queue:       t.Queue,
		Status:      t.Status,
		Payload:     json.RawMessage(t.Payload),
		ScheduledAt: t.ScheduledAt,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if len(resp.Payload) == 0 {
		resp.Payload = json.RawMessage("{}")
	}
	if t.Status == task.StatusPending {
		resp.RemainingSeconds = ratelimit.Remaining(t.ScheduledAt, now)
	}
	return resp
}
