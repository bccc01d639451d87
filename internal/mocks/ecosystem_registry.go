package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/store"
)

// EcosystemRegistry is an in-memory provision.Registry. It keeps the latest
// copy of each ecosystem plus the status of every Record call in order.
type EcosystemRegistry struct {
	mu sync.Mutex

	Ecosystems map[int64]domain.Ecosystem
	Links      map[string]domain.ShortLink
	History    []domain.EcosystemStatus

	// RecordFn, when set, replaces the default Record behaviour.
	RecordFn func(ctx context.Context, e *domain.Ecosystem, link *domain.ShortLink) error
}

// NewEcosystemRegistry creates an empty registry.
func NewEcosystemRegistry() *EcosystemRegistry {
	return &EcosystemRegistry{
		Ecosystems: make(map[int64]domain.Ecosystem),
		Links:      make(map[string]domain.ShortLink),
	}
}

// FindByTitle implements provision.Registry.
func (r *EcosystemRegistry) FindByTitle(_ context.Context, title string) (*domain.Ecosystem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Ecosystems {
		if strings.EqualFold(e.Title, title) {
			found := e
			return &found, nil
		}
	}
	return nil, store.ErrEcosystemNotFound
}

// Record implements provision.Registry.
func (r *EcosystemRegistry) Record(ctx context.Context, e *domain.Ecosystem, link *domain.ShortLink) error {
	if r.RecordFn != nil {
		return r.RecordFn(ctx, e, link)
	}
	if err := e.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if link != nil {
		if existing, ok := r.Links[link.Code]; ok && existing.ChatID != link.ChatID {
			return store.ErrShortCodeTaken
		}
		r.Links[link.Code] = *link
	}
	r.Ecosystems[e.ChatID] = *e
	r.History = append(r.History, e.Status)
	return nil
}

// Get returns a copy of the ecosystem for chatID.
func (r *EcosystemRegistry) Get(chatID int64) (domain.Ecosystem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Ecosystems[chatID]
	return e, ok
}
