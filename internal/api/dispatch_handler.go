package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/eco-queue/internal/api/shared"
	"github.com/phrazzld/eco-queue/internal/dispatch"
	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/task"
)

// ChainRunner runs self-chaining dispatch steps.
type ChainRunner interface {
	Run(ctx context.Context, queue task.Queue, force bool) (dispatch.Result, error)
	Kick(ctx context.Context) ([]dispatch.Result, error)
}

// StuckResetter returns abandoned processing tasks to pending.
type StuckResetter interface {
	ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// KickResponse is returned by POST /dispatch/kick.
type KickResponse struct {
	Results []dispatch.Result `json:"results"`
}

// ResetStuckResponse is returned by POST /dispatch/reset-stuck.
type ResetStuckResponse struct {
	Reset int64 `json:"reset"`
}

// DispatchHandler exposes the dispatch trigger used by the self-invoker and by
// external cron ticks.
type DispatchHandler struct {
	chain      ChainRunner
	tasks      StuckResetter
	stuckAfter time.Duration
	logger     *slog.Logger
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(
	chain ChainRunner,
	tasks StuckResetter,
	stuckAfter time.Duration,
	logger *slog.Logger,
) *DispatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchHandler{
		chain:      chain,
		tasks:      tasks,
		stuckAfter: stuckAfter,
		logger:     logger.With(slog.String("component", "dispatch_handler")),
	}
}

// Trigger handles POST /dispatch/trigger?queue=&force=. It runs one dispatch
// step and reports what happened.
func (h *DispatchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	queue, err := parseQueue(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	force, err := parseBool(r, "force")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.chain.Run(r.Context(), queue, force)
	if err != nil {
		HandleAPIError(w, r, err, "Dispatch failed")
		return
	}

	log.Debug("dispatch triggered",
		slog.String("queue", string(queue)),
		slog.Bool("force", force),
		slog.String("status", string(res.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// Kick handles POST /dispatch/kick. It resumes every overdue continuation.
func (h *DispatchHandler) Kick(w http.ResponseWriter, r *http.Request) {
	results, err := h.chain.Kick(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to resume dispatch")
		return
	}
	if results == nil {
		results = []dispatch.Result{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, KickResponse{Results: results})
}

// MinStuckAge is the smallest older_than ResetStuck accepts. Anything shorter
// would hand tasks that are still executing to a second dispatcher.
const MinStuckAge = time.Minute

// ResetStuck handles POST /dispatch/reset-stuck?older_than=<seconds>.
func (h *DispatchHandler) ResetStuck(w http.ResponseWriter, r *http.Request) {
	olderThan := h.stuckAfter
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			HandleAPIError(w, r, fmt.Errorf("%w: older_than must be whole seconds", domain.ErrValidation), "")
			return
		}
		if time.Duration(secs)*time.Second < MinStuckAge {
			HandleAPIError(w, r, fmt.Errorf("%w: older_than must be at least %d seconds",
				domain.ErrValidation, int(MinStuckAge/time.Second)), "")
			return
		}
		olderThan = time.Duration(secs) * time.Second
	}

	n, err := h.tasks.ResetStuck(r.Context(), olderThan)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to reset stuck tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ResetStuckResponse{Reset: n})
}

func parseBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", domain.ErrValidation, name)
	}
	return v, nil
}
