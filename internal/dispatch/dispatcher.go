package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/eco-queue/internal/executor"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/ratelimit"
	"github.com/phrazzld/eco-queue/internal/task"
)

// Status is the result of one dispatch step.
type Status string

// Dispatch step results
const (
	// StatusIdle means nothing was due.
	StatusIdle Status = "idle"
	// StatusRateLimited means the governor forbade claiming.
	StatusRateLimited Status = "rate_limited"
	// StatusWaiting means the next task is not due yet and a continuation was
	// scheduled for it.
	StatusWaiting Status = "waiting"
	// StatusProcessed means one task was claimed, executed and resolved.
	StatusProcessed Status = "processed"
)

// Result reports what a dispatch step did.
type Result struct {
	Status Status `json:"status"`
	// WaitSeconds is the governor wait for StatusRateLimited, the time until
	// the next task for StatusWaiting, and the new wait when a processed task
	// hit a rate limit.
	WaitSeconds int           `json:"wait_seconds,omitempty"`
	TaskID      int64         `json:"task_id,omitempty"`
	TaskType    task.Type     `json:"task_type,omitempty"`
	Outcome     executor.Kind `json:"outcome,omitempty"`
}

// Executor runs one claimed task.
type Executor interface {
	Execute(ctx context.Context, t *task.Task) error
}

// Dispatcher claims, executes and resolves single tasks.
type Dispatcher struct {
	tasks    task.Store
	governor ratelimit.Governor
	exec     Executor
	owner    string
	claims   atomic.Uint64
	logger   *slog.Logger

	// Now is the clock used for reschedule times.
	Now func() time.Time
}

// NewDispatcher creates a Dispatcher with a fresh instance id used as the
// claim owner.
func NewDispatcher(tasks task.Store, governor ratelimit.Governor, exec Executor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	owner := uuid.NewString()
	return &Dispatcher{
		tasks:    tasks,
		governor: governor,
		exec:     exec,
		owner:    owner,
		logger:   logger.With(slog.String("component", "dispatcher"), slog.String("owner", owner)),
		Now:      time.Now,
	}
}

// Owner returns this dispatcher's instance id. Every claim is recorded as
// "<owner>/<n>" so a task reset and reclaimed by the same instance still
// has a single holder.
func (d *Dispatcher) Owner() string {
	return d.owner
}

func (d *Dispatcher) nextClaim() string {
	return fmt.Sprintf("%s/%d", d.owner, d.claims.Add(1))
}

// Wait returns the current governor wait in seconds.
func (d *Dispatcher) Wait(ctx context.Context) (int, error) {
	wait, err := d.governor.WaitSeconds(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read rate-limit state: %w", err)
	}
	return wait, nil
}

// ProcessOne claims the next due task in queue (any queue when empty),
// executes it and resolves it. With force the claim ignores scheduled_at.
// Nothing is claimed while the governor reports a wait.
func (d *Dispatcher) ProcessOne(ctx context.Context, queue task.Queue, force bool) (Result, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	wait, err := d.Wait(ctx)
	if err != nil {
		return Result{}, err
	}
	if wait > 0 {
		log.Debug("rate limit in effect, not claiming", slog.Int("wait_seconds", wait))
		return Result{Status: StatusRateLimited, WaitSeconds: wait}, nil
	}

	t, err := d.tasks.ClaimNext(ctx, task.ClaimOptions{Queue: queue, Force: force, Owner: d.nextClaim()})
	if errors.Is(err, task.ErrNoTask) {
		return Result{Status: StatusIdle}, nil
	}
	if err != nil {
		return Result{}, err
	}

	log = log.With(
		slog.Int64("task_id", t.ID),
		slog.String("task_type", string(t.Type)),
		slog.String("queue", string(t.Queue)))
	ctx = logger.WithLogger(ctx, log)

	start := time.Now()
	execErr := d.exec.Execute(ctx, t)
	c := executor.Classify(execErr)

	res := Result{Status: StatusProcessed, TaskID: t.ID, TaskType: t.Type, Outcome: c.Kind}
	if err := d.resolve(ctx, t, c); err != nil {
		return res, err
	}
	if c.Kind == executor.KindRateLimited {
		res.WaitSeconds = c.Wait
	}

	log.Info("task processed",
		slog.String("outcome", string(c.Kind)),
		slog.Duration("duration", time.Since(start)),
		slog.String("note", c.Note))
	return res, nil
}

// resolve writes the classified outcome. A rate limit raises the governor
// before the task is returned to pending so no other dispatcher can pick up
// work in between.
func (d *Dispatcher) resolve(ctx context.Context, t *task.Task, c executor.Classification) error {
	var outcome task.Outcome
	switch c.Kind {
	case executor.KindCompleted:
		outcome = task.Completed("")
	case executor.KindSkipped:
		outcome = task.Skipped(c.Note)
	case executor.KindRateLimited:
		if err := d.governor.SetWait(ctx, c.Wait); err != nil {
			return fmt.Errorf("failed to record rate limit of %ds: %w", c.Wait, err)
		}
		at := d.Now().Add(time.Duration(c.Wait) * time.Second)
		outcome = task.Reschedule(at, fmt.Sprintf("%s%ds", task.FloodWaitPrefix, c.Wait))
	default:
		outcome = task.Failed(c.Note)
	}

	err := d.tasks.Resolve(ctx, t.ID, t.ClaimedBy, outcome)
	if errors.Is(err, task.ErrNotHeld) {
		logger.FromContextOrDefault(ctx, d.logger).Warn("task was reclaimed before its outcome was recorded",
			slog.String("dropped_status", string(outcome.Status)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve task %d as %s: %w", t.ID, outcome.Status, err)
	}
	return nil
}
