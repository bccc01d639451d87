package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// ErrNegativeWait is returned by SetWait for negative durations.
var ErrNegativeWait = errors.New("wait seconds must not be negative")

// Governor stores the single global "do not call the platform before" deadline.
type Governor interface {
	// WaitSeconds returns the whole seconds left until the deadline, or 0.
	WaitSeconds(ctx context.Context) (int, error)

	// SetWait pushes the deadline to now+seconds. A deadline that is already
	// later is kept.
	SetWait(ctx context.Context, seconds int) error
}

// Remaining converts a deadline into whole seconds left, rounding up so a
// caller never wakes before the deadline.
func Remaining(until, now time.Time) int {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// MemoryGovernor is an in-process Governor for tests and single-binary runs.
type MemoryGovernor struct {
	mu    sync.Mutex
	until time.Time

	// Now is the clock used to compute deadlines.
	Now func() time.Time
}

// NewMemoryGovernor returns a MemoryGovernor with no active wait.
func NewMemoryGovernor() *MemoryGovernor {
	return &MemoryGovernor{Now: time.Now}
}

var _ Governor = (*MemoryGovernor)(nil)

func (g *MemoryGovernor) WaitSeconds(_ context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Remaining(g.until, g.Now()), nil
}

func (g *MemoryGovernor) SetWait(_ context.Context, seconds int) error {
	if seconds < 0 {
		return ErrNegativeWait
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	candidate := g.Now().Add(time.Duration(seconds) * time.Second)
	if candidate.After(g.until) {
		g.until = candidate
	}
	return nil
}
