package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. It is used by tests and by
// single-process setups; ClaimNext is atomic under the store mutex.
type MemoryStore struct {
	mutex  sync.Mutex
	tasks  map[int64]*Task
	nextID int64

	// Now is the clock used for scheduling decisions.
	Now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[int64]*Task),
		Now:   time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Enqueue(_ context.Context, typ Type, payload []byte, scheduledAt time.Time) (int64, error) {
	queue, err := typ.Queue()
	if err != nil {
		return 0, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.Now()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	s.nextID++
	s.tasks[s.nextID] = &Task{
		ID:          s.nextID,
		Type:        typ,
		Queue:       queue,
		Payload:     append([]byte(nil), payload...),
		Status:      StatusPending,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.nextID, nil
}

// pendingLocked returns pending tasks in claim order. Caller holds the mutex.
func (s *MemoryStore) pendingLocked(queue Queue) []*Task {
	var pending []*Task
	for _, t := range s.tasks {
		if t.Status != StatusPending {
			continue
		}
		if queue != "" && t.Queue != queue {
			continue
		}
		pending = append(pending, t)
	}
	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return pending
}

func (s *MemoryStore) ClaimNext(_ context.Context, opts ClaimOptions) (*Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.Now()
	for _, t := range s.pendingLocked(opts.Queue) {
		if !opts.Force && t.ScheduledAt.After(now) {
			// Sorted by scheduled_at: nothing later is due either.
			break
		}
		t.Status = StatusProcessing
		t.ClaimedBy = opts.Owner
		t.UpdatedAt = now
		claimed := *t
		return &claimed, nil
	}
	return nil, ErrNoTask
}

func (s *MemoryStore) NextScheduled(_ context.Context, queue Queue) (time.Time, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	pending := s.pendingLocked(queue)
	if len(pending) == 0 {
		return time.Time{}, ErrNoTask
	}
	return pending[0].ScheduledAt, nil
}

func (s *MemoryStore) Resolve(_ context.Context, id int64, owner string, outcome Outcome) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status != StatusProcessing || t.ClaimedBy != owner {
		return ErrNotHeld
	}
	t.Status = outcome.Status
	t.Error = outcome.Error
	t.UpdatedAt = s.Now()
	if outcome.Status == StatusPending {
		t.ScheduledAt = outcome.RescheduleAt
		t.ClaimedBy = ""
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*Task, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []*Task
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Queue != "" && t.Queue != filter.Queue {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, status Status) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var n int64
	for id, t := range s.tasks {
		if t.Status == status {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Retry(_ context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status != StatusFailed {
		return ErrNotFailed
	}
	now := s.Now()
	t.Status = StatusPending
	t.ScheduledAt = now
	t.UpdatedAt = now
	t.ClaimedBy = ""
	return nil
}

func (s *MemoryStore) ResetStuck(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.Now()
	var n int64
	for _, t := range s.tasks {
		if t.Status == StatusProcessing && now.Sub(t.UpdatedAt) > olderThan {
			t.Status = StatusPending
			t.Error = StuckNote
			t.ClaimedBy = ""
			t.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var c Counts
	for _, t := range s.tasks {
		switch t.Status {
		case StatusPending:
			c.Pending++
			if strings.HasPrefix(t.Error, FloodWaitPrefix) {
				c.Postponed++
			}
		case StatusProcessing:
			c.Processing++
		case StatusCompleted:
			c.Completed++
			if strings.HasPrefix(t.Error, SkippedPrefix) {
				c.Skipped++
			}
		case StatusFailed:
			c.Failed++
		}
	}
	return c, nil
}
