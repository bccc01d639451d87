package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/eco-queue/internal/ratelimit"
	"github.com/phrazzld/eco-queue/internal/store"
)

// PostgresGovernor implements ratelimit.Governor on the singleton
// rate_limit_state row, using the database clock.
type PostgresGovernor struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGovernor creates a governor backed by rate_limit_state.
func NewPostgresGovernor(db store.DBTX, logger *slog.Logger) *PostgresGovernor {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGovernor{
		db:     db,
		logger: logger.With(slog.String("component", "governor")),
	}
}

var _ ratelimit.Governor = (*PostgresGovernor)(nil)

// WaitSeconds implements ratelimit.Governor.WaitSeconds.
func (g *PostgresGovernor) WaitSeconds(ctx context.Context) (int, error) {
	query := `
		SELECT GREATEST(0, CEIL(EXTRACT(EPOCH FROM (wait_until - NOW()))))::int
		FROM rate_limit_state
		WHERE id = 1
	`
	var wait int
	err := g.db.QueryRowContext(ctx, query).Scan(&wait)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit state: %w", err)
	}
	return wait, nil
}

// SetWait implements ratelimit.Governor.SetWait. GREATEST keeps a later
// deadline written by a concurrent dispatcher.
func (g *PostgresGovernor) SetWait(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return ratelimit.ErrNegativeWait
	}

	query := `
		INSERT INTO rate_limit_state (id, wait_until, updated_at)
		VALUES (1, NOW() + make_interval(secs => $1::double precision), NOW())
		ON CONFLICT (id) DO UPDATE
		SET wait_until = GREATEST(rate_limit_state.wait_until, EXCLUDED.wait_until),
		    updated_at = NOW()
	`
	if _, err := g.db.ExecContext(ctx, query, float64(seconds)); err != nil {
		g.logger.Error("failed to store rate limit state",
			slog.Int("seconds", seconds),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to store rate limit state: %w", err)
	}
	g.logger.Info("global rate limit wait recorded", slog.Int("seconds", seconds))
	return nil
}
