package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/store"
	"github.com/phrazzld/eco-queue/internal/task"
)

const taskColumns = `id, type, queue, payload, status, scheduled_at, error, claimed_by, created_at, updated_at`

// claimQuery selects and marks one due task in a single statement. SKIP LOCKED
// lets concurrent dispatchers pass over a row another one is claiming instead
// of blocking on it or claiming it twice.
const claimQuery = `
	UPDATE tasks
	SET status = 'processing', claimed_by = $3, updated_at = NOW()
	WHERE id = (
		SELECT id FROM tasks
		WHERE status = 'pending'
		  AND ($1::text = '' OR queue = $1::text)
		  AND ($2::boolean OR scheduled_at <= NOW())
		ORDER BY scheduled_at, created_at, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + taskColumns

// PostgresTaskStore implements task.Store using PostgreSQL.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ task.Store = (*PostgresTaskStore)(nil)

// Enqueue implements task.Store.Enqueue. A zero scheduledAt means now.
func (s *PostgresTaskStore) Enqueue(
	ctx context.Context,
	typ task.Type,
	payload []byte,
	scheduledAt time.Time,
) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	queue, err := typ.Queue()
	if err != nil {
		return 0, err
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var at sql.NullTime
	if !scheduledAt.IsZero() {
		at = sql.NullTime{Time: scheduledAt.UTC(), Valid: true}
	}

	query := `
		INSERT INTO tasks (type, queue, payload, status, scheduled_at)
		VALUES ($1, $2, $3::jsonb, 'pending', COALESCE($4::timestamptz, NOW()))
		RETURNING id
	`
	var id int64
	err = s.db.QueryRowContext(ctx, query, string(typ), string(queue), string(payload), at).Scan(&id)
	if err != nil {
		log.Error("failed to enqueue task",
			slog.String("task_type", string(typ)),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to enqueue %s task: %w", typ, MapError(err))
	}

	log.Debug("task enqueued",
		slog.Int64("task_id", id),
		slog.String("task_type", string(typ)),
		slog.String("queue", string(queue)))
	return id, nil
}

// ClaimNext implements task.Store.ClaimNext.
func (s *PostgresTaskStore) ClaimNext(ctx context.Context, opts task.ClaimOptions) (*task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, claimQuery, string(opts.Queue), opts.Force, opts.Owner)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNoTask
	}
	if err != nil {
		log.Error("failed to claim task",
			slog.String("queue", string(opts.Queue)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return t, nil
}

// NextScheduled implements task.Store.NextScheduled.
func (s *PostgresTaskStore) NextScheduled(ctx context.Context, queue task.Queue) (time.Time, error) {
	query := `
		SELECT MIN(scheduled_at) FROM tasks
		WHERE status = 'pending' AND ($1::text = '' OR queue = $1::text)
	`
	var next sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, string(queue)).Scan(&next); err != nil {
		return time.Time{}, fmt.Errorf("failed to read next scheduled task: %w", err)
	}
	if !next.Valid {
		return time.Time{}, task.ErrNoTask
	}
	return next.Time, nil
}

// Resolve implements task.Store.Resolve.
func (s *PostgresTaskStore) Resolve(ctx context.Context, id int64, owner string, outcome task.Outcome) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var rescheduleAt sql.NullTime
	if outcome.Status == task.StatusPending {
		rescheduleAt = sql.NullTime{Time: outcome.RescheduleAt.UTC(), Valid: true}
	}

	query := `
		UPDATE tasks
		SET status = $2,
		    error = $3,
		    scheduled_at = COALESCE($4::timestamptz, scheduled_at),
		    claimed_by = CASE WHEN $2 = 'pending' THEN '' ELSE claimed_by END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing' AND claimed_by = $5
	`
	result, err := s.db.ExecContext(ctx, query, id, string(outcome.Status), outcome.Error, rescheduleAt, owner)
	if err != nil {
		log.Error("failed to resolve task",
			slog.Int64("task_id", id),
			slog.String("status", string(outcome.Status)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to resolve task %d: %w", id, MapError(err))
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	log.Warn("task no longer held by resolver",
		slog.Int64("task_id", id),
		slog.String("owner", owner))
	return task.ErrNotHeld
}

// Get implements task.Store.Get.
func (s *PostgresTaskStore) Get(ctx context.Context, id int64) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return t, nil
}

// List implements task.Store.List. A zero limit returns every match.
func (s *PostgresTaskStore) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	query := `
		SELECT ` + taskColumns + ` FROM tasks
		WHERE ($1::text = '' OR status = $1::text)
		  AND ($2::text = '' OR queue = $2::text)
		ORDER BY id
		LIMIT NULLIF($3::int, 0)
	`
	rows, err := s.db.QueryContext(ctx, query, string(filter.Status), string(filter.Queue), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// Delete implements task.Store.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return CheckRowsAffected(result, task.ErrTaskNotFound)
}

// Clear implements task.Store.Clear.
func (s *PostgresTaskStore) Clear(ctx context.Context, status task.Status) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status = $1`, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to clear %s tasks: %w", status, err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return 0, err
	}
	log.Info("tasks cleared", slog.String("status", string(status)), slog.Int64("count", n))
	return n, nil
}

// Retry implements task.Store.Retry.
func (s *PostgresTaskStore) Retry(ctx context.Context, id int64) error {
	query := `
		UPDATE tasks
		SET status = 'pending', scheduled_at = NOW(), claimed_by = '', updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to retry task %d: %w", id, err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Distinguish a missing task from one in the wrong state.
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return task.ErrNotFailed
}

// ResetStuck implements task.Store.ResetStuck.
func (s *PostgresTaskStore) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = 'pending', error = $2, claimed_by = '', updated_at = NOW()
		WHERE status = 'processing'
		  AND updated_at < NOW() - make_interval(secs => $1::double precision)
	`
	result, err := s.db.ExecContext(ctx, query, olderThan.Seconds(), task.StuckNote)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck tasks: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Warn("reset stuck tasks", slog.Int64("count", n), slog.Duration("older_than", olderThan))
	}
	return n, nil
}

// Counts implements task.Store.Counts.
func (s *PostgresTaskStore) Counts(ctx context.Context) (task.Counts, error) {
	query := `
		SELECT status,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE error LIKE $1),
		       COUNT(*) FILTER (WHERE error LIKE $2)
		FROM tasks
		GROUP BY status
	`
	rows, err := s.db.QueryContext(ctx, query,
		likePrefix(task.SkippedPrefix), likePrefix(task.FloodWaitPrefix))
	if err != nil {
		return task.Counts{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var c task.Counts
	for rows.Next() {
		var status string
		var total, skipped, postponed int
		if err := rows.Scan(&status, &total, &skipped, &postponed); err != nil {
			return task.Counts{}, fmt.Errorf("failed to scan task counts: %w", err)
		}
		switch task.Status(status) {
		case task.StatusPending:
			c.Pending = total
			c.Postponed = postponed
		case task.StatusProcessing:
			c.Processing = total
		case task.StatusCompleted:
			c.Completed = total
			c.Skipped = skipped
		case task.StatusFailed:
			c.Failed = total
		}
	}
	if err := rows.Err(); err != nil {
		return task.Counts{}, fmt.Errorf("error iterating task counts: %w", err)
	}
	return c, nil
}

// likePrefix escapes prefix for use as a LIKE pattern matching it at the start.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var t task.Task
	var typ, queue, status string
	err := row.Scan(
		&t.ID,
		&typ,
		&queue,
		&t.Payload,
		&status,
		&t.ScheduledAt,
		&t.Error,
		&t.ClaimedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = task.Type(typ)
	t.Queue = task.Queue(queue)
	t.Status = task.Status(status)
	return &t, nil
}
