package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/eco-queue/internal/api/shared"
	"github.com/phrazzld/eco-queue/internal/domain"
)

// EcosystemReader reads provisioned ecosystems.
type EcosystemReader interface {
	Get(ctx context.Context, chatID int64) (*domain.Ecosystem, error)
	List(ctx context.Context, limit int) ([]*domain.Ecosystem, error)
}

// EcosystemHandler serves the read-only ecosystem endpoints.
type EcosystemHandler struct {
	ecosystems EcosystemReader
}

// NewEcosystemHandler creates a new EcosystemHandler.
func NewEcosystemHandler(ecosystems EcosystemReader) *EcosystemHandler {
	return &EcosystemHandler{ecosystems: ecosystems}
}

// List handles GET /ecosystems?limit=.
func (h *EcosystemHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	ecosystems, err := h.ecosystems.List(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list ecosystems")
		return
	}
	if ecosystems == nil {
		ecosystems = []*domain.Ecosystem{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ecosystems)
}

// Get handles GET /ecosystems/{chatID}.
func (h *EcosystemHandler) Get(w http.ResponseWriter, r *http.Request) {
	chatID, err := getPathInt64(r, "chatID")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	e, err := h.ecosystems.Get(r.Context(), chatID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get ecosystem")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, e)
}
