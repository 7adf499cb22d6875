package task

import (
	"errors"
	"fmt"
)

// ErrNilBody is returned when a task without a body is submitted.
var ErrNilBody = errors.New("task: body is nil")

// TransientTaskError wraps a failure returned by a task body.
// It is retried while the task has budget left.
type TransientTaskError struct {
	TaskID  string
	Attempt int
	Err     error
}

func (e *TransientTaskError) Error() string {
	return fmt.Sprintf("task %s attempt %d: %v", e.TaskID, e.Attempt, e.Err)
}

func (e *TransientTaskError) Unwrap() error { return e.Err }

// RetryExhaustedError is the terminal error of a task that failed on every
// permitted attempt.
type RetryExhaustedError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("task %s failed after %d attempts: %v", e.TaskID, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// ShutdownError classifies a task discarded because the scheduler stopped
// before dispatching it.
type ShutdownError struct {
	TaskID string
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("task %s dropped: scheduler shut down", e.TaskID)
}
