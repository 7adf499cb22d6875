package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TaskEvent names a task lifecycle event counted by a Sink.
type TaskEvent string

const (
	EventSubmitted TaskEvent = "submitted"
	EventCompleted TaskEvent = "completed"
	EventFailed    TaskEvent = "failed"
	EventRetried   TaskEvent = "retried"
	EventDeferred  TaskEvent = "deferred"
	EventDropped   TaskEvent = "dropped"
)

// Sink records scheduler metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording never blocks on export.
// - Errors: implementations must not panic.
type Sink interface {
	// RecordAttempt records one execution of a task body.
	RecordAttempt(ctx context.Context, meta TaskMeta, duration time.Duration, err error)

	// RecordTask counts a lifecycle event for a task of the given priority.
	RecordTask(ctx context.Context, event TaskEvent, priority string)

	// RecordQueueDepth moves the queued-task gauge by delta.
	RecordQueueDepth(ctx context.Context, delta int64)

	// RecordBatch records a finished batch.
	RecordBatch(ctx context.Context, size, failed int, duration time.Duration)

	// RecordRate records the current permitted rate.
	RecordRate(ctx context.Context, rate float64)

	// RecordCircuitTransition counts a circuit state change.
	RecordCircuitTransition(ctx context.Context, from, to string)
}

type otelSink struct {
	events      metric.Int64Counter
	attempts    metric.Int64Counter
	duration    metric.Float64Histogram
	queueDepth  metric.Int64UpDownCounter
	batches     metric.Int64Counter
	batchUnits  metric.Int64Counter
	batchTime   metric.Float64Histogram
	rate        metric.Float64Gauge
	transitions metric.Int64Counter
}

// NewSink creates a Sink whose instruments live on meter.
func NewSink(meter metric.Meter) (Sink, error) {
	var (
		s   otelSink
		err error
	)

	if s.events, err = meter.Int64Counter(
		"task.events.total",
		metric.WithDescription("Task lifecycle events"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}

	if s.attempts, err = meter.Int64Counter(
		"task.exec.total",
		metric.WithDescription("Task body executions"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if s.duration, err = meter.Float64Histogram(
		"task.exec.duration_ms",
		metric.WithDescription("Task body execution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if s.queueDepth, err = meter.Int64UpDownCounter(
		"task.queue.depth",
		metric.WithDescription("Tasks waiting in the scheduler queue"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, err
	}

	if s.batches, err = meter.Int64Counter(
		"batch.total",
		metric.WithDescription("Batches executed"),
		metric.WithUnit("{batch}"),
	); err != nil {
		return nil, err
	}

	if s.batchUnits, err = meter.Int64Counter(
		"batch.units.total",
		metric.WithDescription("Units executed in batches"),
		metric.WithUnit("{unit}"),
	); err != nil {
		return nil, err
	}

	if s.batchTime, err = meter.Float64Histogram(
		"batch.duration_ms",
		metric.WithDescription("Batch duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if s.rate, err = meter.Float64Gauge(
		"rate.current",
		metric.WithDescription("Permitted task rate"),
		metric.WithUnit("{task}/s"),
	); err != nil {
		return nil, err
	}

	if s.transitions, err = meter.Int64Counter(
		"circuit.transitions.total",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *otelSink) RecordAttempt(ctx context.Context, meta TaskMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("task.priority", meta.Priority),
		attribute.Bool("task.error", err != nil),
	}
	if meta.Name != "" {
		attrs = append(attrs, attribute.String("task.name", meta.Name))
	}
	opt := metric.WithAttributes(attrs...)

	s.attempts.Add(ctx, 1, opt)
	s.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (s *otelSink) RecordTask(ctx context.Context, event TaskEvent, priority string) {
	s.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", string(event)),
		attribute.String("task.priority", priority),
	))
}

func (s *otelSink) RecordQueueDepth(ctx context.Context, delta int64) {
	s.queueDepth.Add(ctx, delta)
}

func (s *otelSink) RecordBatch(ctx context.Context, size, failed int, duration time.Duration) {
	s.batches.Add(ctx, 1)
	if ok := size - failed; ok > 0 {
		s.batchUnits.Add(ctx, int64(ok), metric.WithAttributes(attribute.String("outcome", "success")))
	}
	if failed > 0 {
		s.batchUnits.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("outcome", "failure")))
	}
	s.batchTime.Record(ctx, float64(duration.Microseconds())/1000)
}

func (s *otelSink) RecordRate(ctx context.Context, rate float64) {
	s.rate.Record(ctx, rate)
}

func (s *otelSink) RecordCircuitTransition(ctx context.Context, from, to string) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

type nopSink struct{}

// NopSink returns a Sink that records nothing.
func NopSink() Sink {
	return nopSink{}
}

func (nopSink) RecordAttempt(context.Context, TaskMeta, time.Duration, error) {}
func (nopSink) RecordTask(context.Context, TaskEvent, string) {}
func (nopSink) RecordQueueDepth(context.Context, int64) {}
func (nopSink) RecordBatch(context.Context, int, int, time.Duration) {}
func (nopSink) RecordRate(context.Context, float64) {}
func (nopSink) RecordCircuitTransition(context.Context, string, string) {}
