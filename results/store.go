package results

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/taskops/task"
)

// MaxIDLength is the maximum accepted task ID length.
const MaxIDLength = 512

// Sentinel errors for store operations.
var (
	ErrNilStore  = errors.New("results: store is nil")
	ErrInvalidID = errors.New("results: task id is invalid")
	ErrIDTooLong = errors.New("results: task id exceeds max length")
)

// Outcome is the terminal record of a task.
type Outcome struct {
	TaskID     string
	State      task.State
	Value      any
	Err        error
	Attempts   int
	FinishedAt time.Time
}

// OK reports whether the task completed successfully.
func (o Outcome) OK() bool {
	return o.State == task.StateCompleted && o.Err == nil
}

// Store holds terminal outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns (Outcome{}, false) on miss or expiry.
// - Delete is idempotent.
type Store interface {
	Get(ctx context.Context, id string) (Outcome, bool)
	Put(ctx context.Context, o Outcome) error
	Delete(ctx context.Context, id string) error
}

// ValidateID checks that id can be used as a store key.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "\n\r") {
		return ErrInvalidID
	}
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	return nil
}
