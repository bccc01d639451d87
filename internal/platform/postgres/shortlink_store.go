package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/store"
)

// PostgresShortLinkStore implements store.ShortLinkStore.
type PostgresShortLinkStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresShortLinkStore creates a new PostgresShortLinkStore.
func NewPostgresShortLinkStore(db store.DBTX, logger *slog.Logger) *PostgresShortLinkStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresShortLinkStore{
		db:     db,
		logger: logger.With(slog.String("component", "shortlink_store")),
	}
}

var _ store.ShortLinkStore = (*PostgresShortLinkStore)(nil)

// Upsert implements store.ShortLinkStore.Upsert. Re-running for the same chat
// refreshes the invite link; a code owned by another chat is rejected.
func (s *PostgresShortLinkStore) Upsert(ctx context.Context, link *domain.ShortLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO short_links (code, chat_id, invite_link)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET invite_link = EXCLUDED.invite_link
		WHERE short_links.chat_id = EXCLUDED.chat_id
	`
	result, err := s.db.ExecContext(ctx, query, link.Code, link.ChatID, link.InviteLink)
	if err != nil {
		s.logger.Error("failed to upsert short link",
			slog.String("code", link.Code),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrShortCodeTaken)
}

// GetByCode implements store.ShortLinkStore.GetByCode.
func (s *PostgresShortLinkStore) GetByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	query := `SELECT code, chat_id, invite_link, created_at FROM short_links WHERE code = $1`

	var link domain.ShortLink
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&link.Code,
		&link.ChatID,
		&link.InviteLink,
		&link.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrShortLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get short link: %w", err)
	}
	return &link, nil
}

// WithTx implements store.ShortLinkStore.WithTx.
func (s *PostgresShortLinkStore) WithTx(tx *sql.Tx) store.ShortLinkStore {
	return &PostgresShortLinkStore{db: tx, logger: s.logger}
}
