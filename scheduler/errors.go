package scheduler

import "errors"

// Sentinel errors for scheduler operations.
var (
	// ErrClosed is returned by Submit and Start after Shutdown.
	ErrClosed = errors.New("scheduler: closed")

	// ErrNotStarted is returned by operations that need running workers.
	ErrNotStarted = errors.New("scheduler: not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("scheduler: already started")

	// ErrShutdownTimeout is returned when workers did not stop before the
	// shutdown deadline.
	ErrShutdownTimeout = errors.New("scheduler: shutdown timed out")

	// ErrDuplicateTask is returned when a task with the same ID is still pending.
	ErrDuplicateTask = errors.New("scheduler: task id already pending")

	// ErrTaskFinished is returned when a task that already reached a terminal
	// state is submitted again. Tasks are single-use; build a new one to rerun.
	ErrTaskFinished = errors.New("scheduler: task already finished")

	// ErrCanceled is passed to the drop handler for a task removed by Cancel.
	ErrCanceled = errors.New("scheduler: task canceled")
)
