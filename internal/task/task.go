package task

import (
	"context"
	"errors"
	"time"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Queue is one of the physical queues tasks are drained from.
type Queue string

// Queues, in the order the persistent loop drains them.
const (
	QueueChats    Queue = "chats"
	QueueTopics   Queue = "topics"
	QueueMessages Queue = "messages"
)

// AllQueues lists every queue in drain order.
var AllQueues = []Queue{QueueChats, QueueTopics, QueueMessages}

// Annotation prefixes written into Task.Error.
const (
	SkippedPrefix   = "skipped: "
	FloodWaitPrefix = "FloodWait: "
	StuckNote       = "reset: stuck in processing"
)

// Common errors
var (
	ErrNoTask         = errors.New("no task available")
	ErrTaskNotFound   = errors.New("task not found")
	ErrUnknownType    = errors.New("unknown task type")
	ErrInvalidPayload = errors.New("invalid task payload")
	ErrNotFailed      = errors.New("task is not in failed state")
	ErrNotHeld        = errors.New("task is not processing under this owner")
)

// Task is a queued unit of deferred work.
type Task struct {
	ID          int64     `json:"id"`
	Type        Type      `json:"type"`
	Queue       Queue     `json:"queue"`
	Payload     []byte    `json:"payload"`
	Status      Status    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Error       string    `json:"error,omitempty"`
	ClaimedBy   string    `json:"claimed_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Outcome is how a dispatcher resolves a claimed task.
type Outcome struct {
	Status Status
	Error  string
	// RescheduleAt is set only when Status is StatusPending.
	RescheduleAt time.Time
}

// Completed resolves a task as done. A non-empty note is kept in Task.Error.
func Completed(note string) Outcome {
	return Outcome{Status: StatusCompleted, Error: note}
}

// Skipped resolves a task as done because its side effect already existed.
func Skipped(reason string) Outcome {
	return Outcome{Status: StatusCompleted, Error: SkippedPrefix + reason}
}

// Failed resolves a task as permanently failed.
func Failed(reason string) Outcome {
	return Outcome{Status: StatusFailed, Error: reason}
}

// Reschedule returns a task to pending, claimable again at at.
func Reschedule(at time.Time, reason string) Outcome {
	return Outcome{Status: StatusPending, Error: reason, RescheduleAt: at}
}

// ClaimOptions narrows ClaimNext.
type ClaimOptions struct {
	// Queue restricts the claim to one queue. Empty means any queue.
	Queue Queue
	// Force ignores scheduled_at and claims the oldest pending task.
	Force bool
	// Owner identifies the dispatcher instance holding the claim.
	Owner string
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Status Status
	Queue  Queue
	Limit  int
}

// Counts summarises the store for the admin console.
type Counts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	// Skipped is the subset of Completed resolved as already done.
	Skipped int `json:"skipped"`
	// Postponed is the subset of Pending rescheduled after a FloodWait.
	Postponed int `json:"postponed"`
}

// Store defines the interface for persisting tasks.
// Implementations must make ClaimNext a single atomic select-and-mark so that
// two dispatchers never claim the same task.
type Store interface {
	// Enqueue persists a new pending task and returns its id.
	Enqueue(ctx context.Context, typ Type, payload []byte, scheduledAt time.Time) (int64, error)

	// ClaimNext marks the oldest due pending task as processing and returns it,
	// ordered by scheduled_at, created_at, id. Returns ErrNoTask when nothing is due.
	ClaimNext(ctx context.Context, opts ClaimOptions) (*Task, error)

	// NextScheduled returns the scheduled_at of the earliest pending task in
	// queue (any queue when empty), due or not. Returns ErrNoTask when none.
	NextScheduled(ctx context.Context, queue Queue) (time.Time, error)

	// Resolve records the outcome of a task that owner still holds in
	// processing. It returns ErrNotHeld when the task was reset or reclaimed
	// since, and ErrTaskNotFound when it no longer exists.
	Resolve(ctx context.Context, id int64, owner string, outcome Outcome) error

	// Get returns one task by id.
	Get(ctx context.Context, id int64) (*Task, error)

	// List returns tasks matching filter, oldest first.
	List(ctx context.Context, filter ListFilter) ([]*Task, error)

	// Delete removes one task.
	Delete(ctx context.Context, id int64) error

	// Clear removes every task with the given status and returns how many.
	Clear(ctx context.Context, status Status) (int64, error)

	// Retry returns a failed task to pending, due immediately.
	Retry(ctx context.Context, id int64) error

	// ResetStuck returns tasks processing for longer than olderThan to pending.
	ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error)

	// Counts returns per-status totals.
	Counts(ctx context.Context) (Counts, error)
}
