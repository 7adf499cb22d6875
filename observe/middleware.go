package observe

import (
	"context"
	"fmt"
	"time"
)

// ExecuteFunc is the signature of one task attempt.
type ExecuteFunc func(ctx context.Context, meta TaskMeta) (any, error)

// Middleware wraps task attempts with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe ExecuteFunc.
//   - Context: the attempt runs on a context carrying its span.
//   - Errors: errors from the wrapped function are recorded and propagated unchanged.
//   - Panics: a panicking attempt is recorded as failed, then the panic continues.
type Middleware struct {
	tracer TaskTracer
	sink   Sink
	logger Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer TaskTracer, sink Sink, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTaskTracer()
	}
	if sink == nil {
		sink = NopSink()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer: tracer,
		sink:   sink,
		logger: logger,
	}
}

// Wrap wraps fn with tracing, metrics and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta TaskMeta) (result any, err error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		defer func() {
			r := recover()
			if r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			duration := time.Since(start)

			m.tracer.EndSpan(span, err)
			m.sink.RecordAttempt(ctx, meta, duration, err)

			fields := append(meta.Fields(), F("duration_ms", float64(duration.Microseconds())/1000))
			if err != nil {
				fields = append(fields, F("error", err))
				m.logger.Warn(ctx, "task attempt failed", fields...)
			} else {
				m.logger.Debug(ctx, "task attempt succeeded", fields...)
			}

			if r != nil {
				panic(r)
			}
		}()

		return fn(ctx, meta)
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewMiddleware(NewTaskTracer(obs.Tracer()), obs.Sink(), obs.Logger()), nil
}
