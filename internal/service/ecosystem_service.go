package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/store"
)

// EcosystemService records provisioned ecosystems and their short links.
type EcosystemService struct {
	db         *sql.DB
	ecosystems store.EcosystemStore
	links      store.ShortLinkStore
	logger     *slog.Logger
}

// NewEcosystemService creates an EcosystemService.
// It returns an error if any of the required dependencies are nil.
func NewEcosystemService(
	db *sql.DB,
	ecosystems store.EcosystemStore,
	links store.ShortLinkStore,
	logger *slog.Logger,
) (*EcosystemService, error) {
	if db == nil {
		return nil, NewEcosystemServiceError("init", "db cannot be nil", domain.ErrValidation)
	}
	if ecosystems == nil {
		return nil, NewEcosystemServiceError("init", "ecosystem store cannot be nil", domain.ErrValidation)
	}
	if links == nil {
		return nil, NewEcosystemServiceError("init", "short link store cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EcosystemService{
		db:         db,
		ecosystems: ecosystems,
		links:      links,
		logger:     logger.With(slog.String("component", "ecosystem_service")),
	}, nil
}

// FindByTitle returns the ecosystem with the given title, or
// store.ErrEcosystemNotFound.
func (s *EcosystemService) FindByTitle(ctx context.Context, title string) (*domain.Ecosystem, error) {
	e, err := s.ecosystems.FindByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, store.ErrEcosystemNotFound) {
			return nil, err
		}
		return nil, NewEcosystemServiceError("find", "failed to look up ecosystem", err)
	}
	return e, nil
}

// Get returns the ecosystem for chatID, or store.ErrEcosystemNotFound.
func (s *EcosystemService) Get(ctx context.Context, chatID int64) (*domain.Ecosystem, error) {
	return s.ecosystems.GetByChatID(ctx, chatID)
}

// List returns up to limit ecosystems, newest first.
func (s *EcosystemService) List(ctx context.Context, limit int) ([]*domain.Ecosystem, error) {
	return s.ecosystems.List(ctx, limit)
}

// Record upserts e and, when link is non-nil, its short link in one
// transaction.
func (s *EcosystemService) Record(ctx context.Context, e *domain.Ecosystem, link *domain.ShortLink) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if e == nil {
		return ErrNilEcosystem
	}
	if link != nil && link.ChatID != e.ChatID {
		return ErrLinkMismatch
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.ecosystems.WithTx(tx).Upsert(ctx, e); err != nil {
			return err
		}
		if link == nil {
			return nil
		}
		return s.links.WithTx(tx).Upsert(ctx, link)
	})
	if err != nil {
		log.Error("failed to record ecosystem",
			slog.Int64("chat_id", e.ChatID),
			slog.String("status", string(e.Status)),
			slog.String("error", err.Error()))
		return NewEcosystemServiceError("record", "failed to persist ecosystem", err)
	}

	log.Debug("ecosystem recorded",
		slog.Int64("chat_id", e.ChatID),
		slog.String("status", string(e.Status)),
		slog.Bool("short_link", link != nil))
	return nil
}
