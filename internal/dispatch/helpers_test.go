package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/eco-queue/internal/ratelimit"
	"github.com/phrazzld/eco-queue/internal/task"
)

// fakeClock is a manually advanced clock shared by the store, the governor
// and the dispatcher under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingExecutor returns queued errors in order and records what it ran.
type recordingExecutor struct {
	mu    sync.Mutex
	ran   []*task.Task
	errs  []error
	onRun func(t *task.Task)
}

func (e *recordingExecutor) Execute(_ context.Context, t *task.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ran = append(e.ran, t)
	if e.onRun != nil {
		e.onRun(t)
	}
	if len(e.errs) == 0 {
		return nil
	}
	err := e.errs[0]
	e.errs = e.errs[1:]
	return err
}

func (e *recordingExecutor) Ran() []*task.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*task.Task(nil), e.ran...)
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Schedule(ctx context.Context, c Continuation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type harness struct {
	clock    *fakeClock
	tasks    *task.MemoryStore
	governor *ratelimit.MemoryGovernor
	exec     *recordingExecutor
	d        *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}

	tasks := task.NewMemoryStore()
	tasks.Now = clock.Now
	governor := ratelimit.NewMemoryGovernor()
	governor.Now = clock.Now
	exec := &recordingExecutor{}

	d := NewDispatcher(tasks, governor, exec, nil)
	d.Now = clock.Now

	return &harness{clock: clock, tasks: tasks, governor: governor, exec: exec, d: d}
}

func (h *harness) enqueue(t *testing.T, p task.Payload, in time.Duration) int64 {
	t.Helper()
	raw, err := task.Encode(p)
	require.NoError(t, err)
	var at time.Time
	if in != 0 {
		at = h.clock.Now().Add(in)
	}
	id, err := h.tasks.Enqueue(context.Background(), p.TaskType(), raw, at)
	require.NoError(t, err)
	return id
}

func (h *harness) get(t *testing.T, id int64) *task.Task {
	t.Helper()
	got, err := h.tasks.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

var (
	welcome = task.SendMessage{ChatID: -1001, TopicRef: task.TopicRef{TopicID: 3}, Text: "hello"}
	closing = task.CloseTopic{ChatID: -1001, TopicRef: task.TopicRef{TopicID: 3}}
	newChat = task.CreateChat{Address: "Lenina, 10"}
)
