package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/eco-queue/internal/dispatch"
	"github.com/phrazzld/eco-queue/internal/store"
	"github.com/phrazzld/eco-queue/internal/task"
)

// PostgresContinuationStore implements dispatch.ContinuationStore.
type PostgresContinuationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContinuationStore creates a new PostgresContinuationStore.
func NewPostgresContinuationStore(db store.DBTX, logger *slog.Logger) *PostgresContinuationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresContinuationStore{
		db:     db,
		logger: logger.With(slog.String("component", "continuation_store")),
	}
}

var _ dispatch.ContinuationStore = (*PostgresContinuationStore)(nil)

// Save implements dispatch.ContinuationStore.Save.
func (s *PostgresContinuationStore) Save(ctx context.Context, c dispatch.Continuation) error {
	query := `
		INSERT INTO dispatch_continuations (queue, run_at, reason, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (queue) DO UPDATE
		SET run_at = EXCLUDED.run_at, reason = EXCLUDED.reason, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, string(c.Queue), c.RunAt.UTC(), c.Reason); err != nil {
		return fmt.Errorf("failed to save continuation for queue %q: %w", c.Queue, err)
	}
	return nil
}

// TakeDue implements dispatch.ContinuationStore.TakeDue. The DELETE makes the
// take atomic across concurrent kicks.
func (s *PostgresContinuationStore) TakeDue(ctx context.Context, now time.Time) ([]dispatch.Continuation, error) {
	query := `
		DELETE FROM dispatch_continuations
		WHERE run_at <= $1
		RETURNING queue, run_at, reason
	`
	rows, err := s.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to take due continuations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var due []dispatch.Continuation
	for rows.Next() {
		var c dispatch.Continuation
		var queue string
		if err := rows.Scan(&queue, &c.RunAt, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan continuation: %w", err)
		}
		c.Queue = task.Queue(queue)
		due = append(due, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating continuations: %w", err)
	}
	if len(due) > 0 {
		s.logger.Debug("took due continuations", slog.Int("count", len(due)))
	}
	return due, nil
}
