package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/phrazzld/eco-queue/internal/executor"
	"github.com/phrazzld/eco-queue/internal/task"
)

// LoopConfig tunes a Loop.
type LoopConfig struct {
	// Queues are drained in this order on every pass.
	Queues         []task.Queue
	InterTaskDelay time.Duration
	IdleDelay      time.Duration
	// StuckAfter enables periodic stuck-task recovery when positive.
	StuckAfter time.Duration
}

// Loop is the persistent dispatcher for a long-running process.
type Loop struct {
	dispatcher *Dispatcher
	tasks      task.Store
	cfg        LoopConfig
	pace       *rate.Limiter
	logger     *slog.Logger
	lastReset  time.Time

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewLoop creates a Loop. An empty Queues list drains every queue.
func NewLoop(dispatcher *Dispatcher, tasks task.Store, cfg LoopConfig, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = task.AllQueues
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.InterTaskDelay > 0 {
		limit = rate.Every(cfg.InterTaskDelay)
	}

	return &Loop{
		dispatcher: dispatcher,
		tasks:      tasks,
		cfg:        cfg,
		pace:       rate.NewLimiter(limit, 1),
		logger:     logger.With(slog.String("component", "dispatch_loop")),
		Now:        time.Now,
		Sleep:      sleep,
	}
}

// Run cycles until ctx is cancelled. Errors from a pass are logged and
// followed by an idle pause; they do not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("dispatch loop started",
		slog.Any("queues", l.cfg.Queues),
		slog.Duration("inter_task_delay", l.cfg.InterTaskDelay),
		slog.Duration("idle_delay", l.cfg.IdleDelay))

	for {
		if ctx.Err() != nil {
			l.logger.Info("dispatch loop stopped")
			return nil
		}

		l.recoverStuck(ctx)

		pause := l.cfg.IdleDelay
		processed, wait, err := l.Pass(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			continue
		case err != nil:
			l.logger.Error("dispatch pass failed", slog.String("error", err.Error()))
		case wait > 0:
			pause = time.Duration(wait) * time.Second
			l.logger.Info("rate limit in effect, pausing", slog.Int("wait_seconds", wait))
		case processed > 0:
			continue
		}

		if err := l.Sleep(ctx, pause); err != nil {
			continue
		}
	}
}

// Pass drains each queue in order until it is empty. It stops early and
// reports the wait when the governor forbids claiming, including when a task
// in this pass hit a rate limit.
func (l *Loop) Pass(ctx context.Context) (processed int, wait int, err error) {
	for _, queue := range l.cfg.Queues {
		for {
			res, err := l.dispatcher.ProcessOne(ctx, queue, false)
			if err != nil {
				return processed, 0, err
			}
			if res.Status == StatusRateLimited {
				return processed, res.WaitSeconds, nil
			}
			if res.Status == StatusIdle {
				break
			}

			processed++
			if res.Outcome == executor.KindRateLimited {
				return processed, res.WaitSeconds, nil
			}
			if err := l.pause(ctx); err != nil {
				return processed, 0, err
			}
		}
	}
	return processed, 0, nil
}

// pause spaces consecutive tasks by InterTaskDelay. A token that built up
// while the loop was idle is discarded first, so the first two tasks of a
// burst are spaced like the rest.
func (l *Loop) pause(ctx context.Context) error {
	now := l.Now()
	l.pace.AllowN(now, 1)
	r := l.pace.ReserveN(now, 1)
	if !r.OK() {
		return nil
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	return l.Sleep(ctx, delay)
}

func (l *Loop) recoverStuck(ctx context.Context) {
	if l.cfg.StuckAfter <= 0 {
		return
	}
	now := l.Now()
	if !l.lastReset.IsZero() && now.Sub(l.lastReset) < l.cfg.StuckAfter {
		return
	}
	l.lastReset = now

	n, err := l.tasks.ResetStuck(ctx, l.cfg.StuckAfter)
	if err != nil {
		l.logger.Error("failed to reset stuck tasks", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		l.logger.Warn("returned stuck tasks to pending", slog.Int64("count", n))
	}
}
