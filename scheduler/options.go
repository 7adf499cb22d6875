package scheduler

import (
	"context"
	"time"

	"github.com/jonwraymond/taskops/batch"
	"github.com/jonwraymond/taskops/observe"
	"github.com/jonwraymond/taskops/resilience"
	"github.com/jonwraymond/taskops/results"
	"github.com/jonwraymond/taskops/task"
)

// Config configures a Scheduler.
type Config struct {
	// DispatchWorkers is the number of goroutines popping the queue.
	// Default: 1
	DispatchWorkers int

	// PollInterval bounds how long an idle worker waits before looking at
	// the queue again.
	// Default: 1 second
	PollInterval time.Duration

	// ShutdownTimeout bounds Shutdown when its context has no deadline.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// Rate configures the adaptive rate controller.
	Rate resilience.RateControllerConfig

	// Circuit configures the circuit breaker around task bodies.
	Circuit resilience.CircuitBreakerConfig

	// Batch configures the executor running completion units.
	Batch batch.Config

	// Deferral configures the delay before a task rejected by an open
	// circuit is requeued.
	Deferral resilience.BackoffConfig

	// Retention configures the default result store. A zero policy keeps
	// nothing. Ignored when WithResultStore is used.
	Retention results.Policy
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		DispatchWorkers: 1,
		PollInterval:    time.Second,
		ShutdownTimeout: 30 * time.Second,
		Batch:           batch.DefaultConfig(),
		Retention:       results.DefaultPolicy(),
	}
}

// CompletionHandler receives a completed task and its final value. It runs
// inside the batch executor, after the task's PostProcess stage.
type CompletionHandler func(ctx context.Context, t *task.Task, value any) error

// FailureHandler receives a task whose retry budget is spent. err is a
// *task.RetryExhaustedError.
type FailureHandler func(ctx context.Context, t *task.Task, err error)

// DropHandler receives a task discarded before it could finish. err is a
// *task.ShutdownError or ErrCanceled.
type DropHandler func(ctx context.Context, t *task.Task, err error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: observe.NopLogger().
func WithLogger(l observe.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSink sets the metrics sink. Default: observe.NopSink().
func WithSink(sink observe.Sink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithTracer sets the tracer that opens a span per attempt.
// Default: observe.NopTaskTracer().
func WithTracer(t observe.TaskTracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithObserver takes the logger, sink and tracer from obs.
func WithObserver(obs observe.Observer) Option {
	return func(s *Scheduler) {
		if obs == nil {
			return
		}
		s.logger = obs.Logger()
		s.sink = obs.Sink()
		s.tracer = observe.NewTaskTracer(obs.Tracer())
	}
}

// WithResultStore sets where terminal outcomes are kept for Outcome.
// Default: a results.MemoryStore with Config.Retention.
func WithResultStore(store results.Store) Option {
	return func(s *Scheduler) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCompletionHandler registers fn for completed tasks.
func WithCompletionHandler(fn CompletionHandler) Option {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// WithFailureHandler registers fn for tasks that exhausted their retries.
func WithFailureHandler(fn FailureHandler) Option {
	return func(s *Scheduler) {
		s.onFailure = fn
	}
}

// WithDropHandler registers fn for tasks dropped at shutdown or cancelled.
func WithDropHandler(fn DropHandler) Option {
	return func(s *Scheduler) {
		s.onDrop = fn
	}
}
