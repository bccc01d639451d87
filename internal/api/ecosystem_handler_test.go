package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/store"
)

type fakeEcosystems struct {
	byID      map[int64]*domain.Ecosystem
	lastLimit int
}

func (f *fakeEcosystems) Get(_ context.Context, chatID int64) (*domain.Ecosystem, error) {
	e, ok := f.byID[chatID]
	if !ok {
		return nil, store.ErrEcosystemNotFound
	}
	return e, nil
}

func (f *fakeEcosystems) List(_ context.Context, limit int) ([]*domain.Ecosystem, error) {
	f.lastLimit = limit
	var out []*domain.Ecosystem
	for _, e := range f.byID {
		out = append(out, e)
	}
	return out, nil
}

func newEcosystemRouter(f *fakeEcosystems) chi.Router {
	h := NewEcosystemHandler(f)
	r := chi.NewRouter()
	r.Get("/ecosystems", h.List)
	r.Get("/ecosystems/{chatID}", h.Get)
	return r
}

func TestEcosystemHandler(t *testing.T) {
	eco := &domain.Ecosystem{
		ChatID:             -1001234567890,
		Title:              "Lenina 12",
		MarketplaceTopicID: 12,
		AdminTopicID:       13,
		Status:             domain.EcosystemStatusNotConnected,
	}
	f := &fakeEcosystems{byID: map[int64]*domain.Ecosystem{eco.ChatID: eco}}
	r := newEcosystemRouter(f)

	rec := serve(r, http.MethodGet, "/ecosystems/-1001234567890")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.Ecosystem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Lenina 12", got.Title)
	assert.Equal(t, 13, got.AdminTopicID)

	rec = serve(r, http.MethodGet, "/ecosystems/-100")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Ecosystem not found", decodeError(t, rec))

	rec = serve(r, http.MethodGet, "/ecosystems?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Ecosystem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
	assert.Equal(t, 5, f.lastLimit)
}

func TestEcosystemHandler_EmptyList(t *testing.T) {
	r := newEcosystemRouter(&fakeEcosystems{byID: map[int64]*domain.Ecosystem{}})

	rec := serve(r, http.MethodGet, "/ecosystems")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
