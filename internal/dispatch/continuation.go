package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/eco-queue/internal/task"
)

// Continuation records that a self-chaining dispatcher must run again for
// Queue at RunAt. An empty Queue means every queue.
type Continuation struct {
	Queue  task.Queue `json:"queue"`
	RunAt  time.Time  `json:"run_at"`
	Reason string     `json:"reason,omitempty"`
}

// ContinuationStore keeps at most one pending continuation per queue so a
// crashed chain can be resumed by an external tick.
type ContinuationStore interface {
	// Save replaces the continuation for c.Queue.
	Save(ctx context.Context, c Continuation) error

	// TakeDue removes and returns every continuation with RunAt <= now.
	TakeDue(ctx context.Context, now time.Time) ([]Continuation, error)
}

// MemoryContinuations is an in-memory ContinuationStore.
type MemoryContinuations struct {
	mu      sync.Mutex
	byQueue map[task.Queue]Continuation
}

// NewMemoryContinuations returns an empty MemoryContinuations.
func NewMemoryContinuations() *MemoryContinuations {
	return &MemoryContinuations{byQueue: make(map[task.Queue]Continuation)}
}

var _ ContinuationStore = (*MemoryContinuations)(nil)

func (m *MemoryContinuations) Save(_ context.Context, c Continuation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byQueue[c.Queue] = c
	return nil
}

func (m *MemoryContinuations) TakeDue(_ context.Context, now time.Time) ([]Continuation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []Continuation
	for q, c := range m.byQueue {
		if !c.RunAt.After(now) {
			due = append(due, c)
			delete(m.byQueue, q)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	return due, nil
}

// Pending returns a snapshot of stored continuations, for inspection.
func (m *MemoryContinuations) Pending() []Continuation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Continuation, 0, len(m.byQueue))
	for _, c := range m.byQueue {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue < out[j].Queue })
	return out
}
