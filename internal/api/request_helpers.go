package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/task"
)

// maxListLimit caps list queries.
const maxListLimit = 500

// getPathInt64 extracts a positive integer from the URL path parameters.
func getPathInt64(r *http.Request, paramName string) (int64, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}
	return id, nil
}

// parseLimit reads ?limit, defaulting to def and capping at maxListLimit.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrValidation)
	}
	if n == 0 || n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

// parseQueue reads ?queue. Empty means every queue.
func parseQueue(r *http.Request) (task.Queue, error) {
	q := task.Queue(r.URL.Query().Get("queue"))
	if q == "" {
		return "", nil
	}
	for _, known := range task.AllQueues {
		if q == known {
			return q, nil
		}
	}
	return "", fmt.Errorf("%w: unknown queue %q", domain.ErrValidation, q)
}

// parseStatus reads ?status. Empty means every status.
func parseStatus(r *http.Request) (task.Status, error) {
	s := task.Status(r.URL.Query().Get("status"))
	if s == "" || s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", domain.ErrValidation, s)
}
