package resilience

import (
	"context"
	"fmt"
	"time"
)

// Executor composes the resilience patterns into an admission pipeline.
type Executor struct {
	rateController *RateController
	circuitBreaker *CircuitBreaker
	bulkhead       *Bulkhead
	timeout        time.Duration
	detach         bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateController gates every call on a rate permit and feeds the
// outcome back into the controller.
func WithRateController(rc *RateController) ExecutorOption {
	return func(e *Executor) {
		e.rateController = rc
	}
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithBulkhead adds bulkhead isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithDefaultTimeout sets the per-call timeout used when Call is given none.
func WithDefaultTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

// WithDetachedExecution runs admitted operations on a context that keeps the
// caller's values but not its cancellation. Cancelling the caller's context
// then only aborts the wait for admission; an operation that already started
// finishes or times out.
func WithDetachedExecution() ExecutorOption {
	return func(e *Executor) {
		e.detach = true
	}
}

// Execute runs the operation through all configured resilience patterns.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := e.Call(ctx, 0, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
	return err
}

// Call runs op through the pipeline and returns its value.
//
// The execution order is:
// 1. Rate controller (if configured) - waits for a permit
// 2. Bulkhead (if configured) - limits concurrency
// 3. Circuit breaker (if configured) - rejects while open
// 4. Timeout - timeout if positive, else the executor default
//
// Errors wrapping ErrNotAdmitted, and rejections by the executor's own
// breaker, mean op never ran. Only outcomes of calls that ran are recorded on
// the rate controller, whatever error they return.
func (e *Executor) Call(ctx context.Context, timeout time.Duration, op func(context.Context) (any, error)) (any, error) {
	if timeout <= 0 {
		timeout = e.timeout
	}

	if e.rateController != nil {
		if err := e.rateController.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotAdmitted, err)
		}
	}

	runCtx := ctx
	if e.detach {
		runCtx = context.WithoutCancel(ctx)
	}

	if e.bulkhead != nil {
		if err := e.bulkhead.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrNotAdmitted, err)
			}
			return nil, err
		}
		defer e.bulkhead.Release()
	}

	// Build the execution chain from inside out
	ran := false
	execute := func(ctx context.Context) (any, error) {
		ran = true
		return WithTimeout(ctx, timeout, op)
	}

	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) (any, error) {
			return Call(ctx, e.circuitBreaker, inner)
		}
	}

	v, err := execute(runCtx)
	if ran {
		e.record(err)
	}
	return v, err
}

func (e *Executor) record(err error) {
	if e.rateController == nil {
		return
	}
	if err != nil {
		e.rateController.RecordError()
		return
	}
	e.rateController.RecordSuccess()
}
