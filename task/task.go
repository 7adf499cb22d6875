package task

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is the retry budget of a task built with New.
const DefaultMaxRetries = 3

// Body is the work a task performs.
type Body interface {
	Execute(ctx context.Context) (any, error)
}

// Func adapts an ordinary function to Body.
type Func func(ctx context.Context) (any, error)

// Execute calls f(ctx).
func (f Func) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// PostProcessFunc transforms the value of a successful attempt. It runs in
// the batch executor, after admission control has let the body through.
type PostProcessFunc func(ctx context.Context, value any) (any, error)

// Priority orders tasks in the scheduler queue.
type Priority int

const (
	// PriorityLow runs after everything else.
	PriorityLow Priority = iota + 1
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityHigh runs before normal work.
	PriorityHigh
	// PriorityCritical runs first.
	PriorityCritical
)

// Priorities lists every tier from highest to lowest.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined tiers.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// State is the lifecycle position of a task.
type State int32

const (
	// StatePending means the task is queued or waiting to be requeued.
	StatePending State = iota
	// StateRunning means a dispatch worker is executing the body.
	StateRunning
	// StateRetrying means the last attempt failed and the task is going back to the queue.
	StateRetrying
	// StateCompleted is terminal: an attempt succeeded.
	StateCompleted
	// StateFailed is terminal: the retry budget is spent.
	StateFailed
	// StateDropped is terminal: the scheduler shut down or the task was cancelled before dispatch.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateRetrying:
		return "retrying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateDropped
}

// Task is a unit of schedulable work.
//
// The exported fields are set by the producer before submission and must not
// change afterwards. Retry count and state are owned by the scheduler.
type Task struct {
	ID          string
	Name        string
	Body        Body
	Priority    Priority
	MaxRetries  int
	Timeout     time.Duration
	PostProcess PostProcessFunc
	CreatedAt   time.Time

	retries atomic.Int32
	state   atomic.Int32
}

// Option configures a Task.
type Option func(*Task)

// New creates a task with a fresh ID, normal priority and the default retry
// budget.
func New(body Body, opts ...Option) *Task {
	t := &Task{
		ID:         uuid.NewString(),
		Body:       body,
		Priority:   PriorityNormal,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithID overrides the generated identifier.
func WithID(id string) Option {
	return func(t *Task) { t.ID = id }
}

// WithName sets a human-readable label used in logs and spans.
func WithName(name string) Option {
	return func(t *Task) { t.Name = name }
}

// WithPriority sets the queue tier.
func WithPriority(p Priority) Option {
	return func(t *Task) { t.Priority = p }
}

// WithMaxRetries sets how many times a failed attempt is retried.
func WithMaxRetries(n int) Option {
	return func(t *Task) { t.MaxRetries = n }
}

// WithTimeout bounds each attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(t *Task) { t.Timeout = d }
}

// WithPostProcess attaches a stage executed in batches after success.
func WithPostProcess(fn PostProcessFunc) Option {
	return func(t *Task) { t.PostProcess = fn }
}

// Validate checks that the task can be scheduled.
func (t *Task) Validate() error {
	if t == nil || t.Body == nil {
		return ErrNilBody
	}
	return nil
}

// Normalize fills in zero-valued fields so a Task built as a struct literal
// behaves like one built with New. Negative budgets become zero and unknown
// priorities become PriorityNormal.
func (t *Task) Normalize() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if !t.Priority.Valid() {
		t.Priority = PriorityNormal
	}
	if t.MaxRetries < 0 {
		t.MaxRetries = 0
	}
	if t.Timeout < 0 {
		t.Timeout = 0
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
}

// Label returns the name if set, otherwise the ID.
func (t *Task) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// RetryCount returns how many retries have been consumed.
func (t *Task) RetryCount() int {
	return int(t.retries.Load())
}

// Attempt returns the 1-based number of the next (or current) attempt.
func (t *Task) Attempt() int {
	return t.RetryCount() + 1
}

// ConsumeRetry spends one unit of retry budget. It returns false, leaving the
// count unchanged, when the budget is already exhausted.
func (t *Task) ConsumeRetry() bool {
	for {
		n := t.retries.Load()
		if int(n) >= t.MaxRetries {
			return false
		}
		if t.retries.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	return State(t.state.Load())
}

// SetState records a lifecycle transition. It is called by the scheduler.
func (t *Task) SetState(s State) {
	t.state.Store(int32(s))
}
