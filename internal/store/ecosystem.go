package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/eco-queue/internal/domain"
)

// EcosystemStore defines the interface for ecosystem persistence.
type EcosystemStore interface {
	// Upsert inserts the ecosystem or replaces the row with the same chat ID.
	// Returns validation errors from the domain Ecosystem if data is invalid.
	Upsert(ctx context.Context, e *domain.Ecosystem) error

	// GetByChatID retrieves an ecosystem by its chat ID.
	// Returns ErrEcosystemNotFound if the ecosystem does not exist.
	GetByChatID(ctx context.Context, chatID int64) (*domain.Ecosystem, error)

	// FindByTitle retrieves the ecosystem whose title matches exactly,
	// ignoring case. Returns ErrEcosystemNotFound when there is none.
	FindByTitle(ctx context.Context, title string) (*domain.Ecosystem, error)

	// List returns ecosystems, newest first.
	List(ctx context.Context, limit int) ([]*domain.Ecosystem, error)

	// WithTx returns a new EcosystemStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) EcosystemStore
}

// ShortLinkStore defines the interface for short link persistence.
type ShortLinkStore interface {
	// Upsert writes the link. Returns ErrShortCodeTaken if the code already
	// belongs to another chat.
	Upsert(ctx context.Context, link *domain.ShortLink) error

	// GetByCode returns ErrShortLinkNotFound for unknown codes.
	GetByCode(ctx context.Context, code string) (*domain.ShortLink, error)

	// WithTx returns a new ShortLinkStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ShortLinkStore
}
