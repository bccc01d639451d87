package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/store"
)

const ecosystemColumns = `chat_id, title, district, marketplace_topic_id, admin_topic_id,
	invite_link, status, member_count, last_error, created_at, updated_at`

// PostgresEcosystemStore implements store.EcosystemStore.
type PostgresEcosystemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEcosystemStore creates a new PostgresEcosystemStore.
func NewPostgresEcosystemStore(db store.DBTX, logger *slog.Logger) *PostgresEcosystemStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEcosystemStore{
		db:     db,
		logger: logger.With(slog.String("component", "ecosystem_store")),
	}
}

var _ store.EcosystemStore = (*PostgresEcosystemStore)(nil)

// Upsert implements store.EcosystemStore.Upsert.
func (s *PostgresEcosystemStore) Upsert(ctx context.Context, e *domain.Ecosystem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := e.Validate(); err != nil {
		log.Warn("ecosystem validation failed during upsert",
			slog.Int64("chat_id", e.ChatID),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO ecosystems (` + ecosystemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (chat_id) DO UPDATE SET
			title = EXCLUDED.title,
			district = EXCLUDED.district,
			marketplace_topic_id = EXCLUDED.marketplace_topic_id,
			admin_topic_id = EXCLUDED.admin_topic_id,
			invite_link = EXCLUDED.invite_link,
			status = EXCLUDED.status,
			member_count = EXCLUDED.member_count,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ChatID,
		e.Title,
		e.District,
		e.MarketplaceTopicID,
		e.AdminTopicID,
		e.InviteLink,
		string(e.Status),
		e.MemberCount,
		e.LastError,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert ecosystem",
			slog.Int64("chat_id", e.ChatID),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("ecosystem saved",
		slog.Int64("chat_id", e.ChatID),
		slog.String("title", e.Title),
		slog.String("status", string(e.Status)))
	return nil
}

// GetByChatID implements store.EcosystemStore.GetByChatID.
func (s *PostgresEcosystemStore) GetByChatID(ctx context.Context, chatID int64) (*domain.Ecosystem, error) {
	query := `SELECT ` + ecosystemColumns + ` FROM ecosystems WHERE chat_id = $1`
	e, err := scanEcosystem(s.db.QueryRowContext(ctx, query, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrEcosystemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ecosystem %d: %w", chatID, err)
	}
	return e, nil
}

// FindByTitle implements store.EcosystemStore.FindByTitle.
func (s *PostgresEcosystemStore) FindByTitle(ctx context.Context, title string) (*domain.Ecosystem, error) {
	query := `
		SELECT ` + ecosystemColumns + ` FROM ecosystems
		WHERE LOWER(title) = LOWER($1)
		ORDER BY created_at
		LIMIT 1
	`
	e, err := scanEcosystem(s.db.QueryRowContext(ctx, query, title))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrEcosystemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ecosystem by title: %w", err)
	}
	return e, nil
}

// List implements store.EcosystemStore.List.
func (s *PostgresEcosystemStore) List(ctx context.Context, limit int) ([]*domain.Ecosystem, error) {
	query := `
		SELECT ` + ecosystemColumns + ` FROM ecosystems
		ORDER BY created_at DESC
		LIMIT NULLIF($1::int, 0)
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ecosystems: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Ecosystem
	for rows.Next() {
		e, err := scanEcosystem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ecosystem row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ecosystem rows: %w", err)
	}
	return out, nil
}

// WithTx implements store.EcosystemStore.WithTx.
func (s *PostgresEcosystemStore) WithTx(tx *sql.Tx) store.EcosystemStore {
	return &PostgresEcosystemStore{db: tx, logger: s.logger}
}

func scanEcosystem(row rowScanner) (*domain.Ecosystem, error) {
	var e domain.Ecosystem
	var status string
	err := row.Scan(
		&e.ChatID,
		&e.Title,
		&e.District,
		&e.MarketplaceTopicID,
		&e.AdminTopicID,
		&e.InviteLink,
		&status,
		&e.MemberCount,
		&e.LastError,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = domain.EcosystemStatus(status)
	return &e, nil
}
