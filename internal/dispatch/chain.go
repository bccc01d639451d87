package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/eco-queue/internal/executor"
	"github.com/phrazzld/eco-queue/internal/platform/logger"
	"github.com/phrazzld/eco-queue/internal/ratelimit"
	"github.com/phrazzld/eco-queue/internal/task"
)

// DefaultInlineWaitMax is the longest a self-chaining invocation sleeps
// in-process for a task that is almost due.
const DefaultInlineWaitMax = 15 * time.Second

// Scheduler arranges a future invocation of the self-chaining dispatcher.
type Scheduler interface {
	Schedule(ctx context.Context, c Continuation) error
}

// ChainConfig tunes a Chain.
type ChainConfig struct {
	InlineWaitMax time.Duration
	// ChainDelay separates a processed task from the next invocation.
	ChainDelay time.Duration
}

// Chain is the self-chaining dispatcher. Every Run that has more work ahead
// of it leaves exactly one continuation: recorded in the ContinuationStore so
// Kick can recover it, and handed to the Scheduler for a timely call.
type Chain struct {
	dispatcher    *Dispatcher
	tasks         task.Store
	continuations ContinuationStore
	scheduler     Scheduler
	cfg           ChainConfig
	logger        *slog.Logger

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewChain creates a Chain.
func NewChain(
	dispatcher *Dispatcher,
	tasks task.Store,
	continuations ContinuationStore,
	scheduler Scheduler,
	cfg ChainConfig,
	logger *slog.Logger,
) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InlineWaitMax < 0 {
		cfg.InlineWaitMax = 0
	}
	return &Chain{
		dispatcher:    dispatcher,
		tasks:         tasks,
		continuations: continuations,
		scheduler:     scheduler,
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "dispatch_chain")),
		Now:           time.Now,
		Sleep:         sleep,
	}
}

// Run performs one self-chaining invocation for queue.
func (c *Chain) Run(ctx context.Context, queue task.Queue, force bool) (Result, error) {
	log := logger.FromContextOrDefault(ctx, c.logger).With(slog.String("queue", string(queue)))
	ctx = logger.WithLogger(ctx, log)

	wait, err := c.dispatcher.Wait(ctx)
	if err != nil {
		return Result{}, err
	}
	if wait > 0 {
		res := Result{Status: StatusRateLimited, WaitSeconds: wait}
		return res, c.continueAt(ctx, queue, c.Now().Add(time.Duration(wait)*time.Second), "rate limited")
	}

	if !force {
		next, err := c.tasks.NextScheduled(ctx, queue)
		if errors.Is(err, task.ErrNoTask) {
			log.Debug("queue empty")
			return Result{Status: StatusIdle}, nil
		}
		if err != nil {
			return Result{}, err
		}

		delay := next.Sub(c.Now())
		if delay > c.cfg.InlineWaitMax {
			res := Result{Status: StatusWaiting, WaitSeconds: ratelimit.Remaining(next, c.Now())}
			return res, c.continueAt(ctx, queue, next, "next task not due")
		}
		if delay > 0 {
			log.Debug("sleeping until next task is due", slog.Duration("delay", delay))
			if err := c.Sleep(ctx, delay); err != nil {
				return Result{}, err
			}
		}
	}

	res, err := c.dispatcher.ProcessOne(ctx, queue, force)
	if err != nil {
		return res, err
	}

	switch {
	case res.Status == StatusRateLimited:
		return res, c.continueAt(ctx, queue, c.Now().Add(time.Duration(res.WaitSeconds)*time.Second), "rate limited")
	case res.Status == StatusIdle:
		return res, nil
	case res.Outcome == executor.KindRateLimited:
		return res, c.continueAt(ctx, queue, c.Now().Add(time.Duration(res.WaitSeconds)*time.Second), "flood wait")
	default:
		return res, c.continueAt(ctx, queue, c.Now().Add(c.cfg.ChainDelay), "chain")
	}
}

// Kick runs every continuation that is overdue, for example because the
// process that scheduled it died. It is meant for an external periodic tick.
// A continuation whose run fails is saved back unchanged so the next tick
// retries it; the other due queues still run.
func (c *Chain) Kick(ctx context.Context) ([]Result, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	due, err := c.continuations.TakeDue(ctx, c.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load due continuations: %w", err)
	}

	results := make([]Result, 0, len(due))
	var errs []error
	for _, cont := range due {
		res, err := c.Run(ctx, cont.Queue, false)
		if err == nil {
			results = append(results, res)
			continue
		}
		errs = append(errs, fmt.Errorf("queue %q: %w", cont.Queue, err))

		if saveErr := c.continuations.Save(context.WithoutCancel(ctx), cont); saveErr != nil {
			log.Error("failed to restore continuation",
				slog.String("queue", string(cont.Queue)),
				slog.String("error", saveErr.Error()))
			errs = append(errs, saveErr)
		}
	}
	return results, errors.Join(errs...)
}

// continueAt records and schedules the single follow-up of this invocation.
// A scheduler failure is logged only: the durable record lets Kick resume.
func (c *Chain) continueAt(ctx context.Context, queue task.Queue, at time.Time, reason string) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	cont := Continuation{Queue: queue, RunAt: at.UTC(), Reason: reason}
	if err := c.continuations.Save(ctx, cont); err != nil {
		return fmt.Errorf("failed to save continuation: %w", err)
	}
	if c.scheduler == nil {
		return nil
	}
	if err := c.scheduler.Schedule(ctx, cont); err != nil {
		log.Warn("failed to schedule continuation, waiting for kick",
			slog.Time("run_at", cont.RunAt),
			slog.String("error", err.Error()))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
