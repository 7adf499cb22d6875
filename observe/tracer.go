package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// TaskMeta describes one task attempt for telemetry purposes.
type TaskMeta struct {
	ID       string // Task ID (required)
	Name     string // Human-readable label (optional)
	Priority string // Priority tier name
	Attempt  int    // 1-based attempt number
}

// SpanName returns the deterministic span name for this task.
// Format: task.exec.<name> or task.exec
func (m TaskMeta) SpanName() string {
	if m.Name != "" {
		return "task.exec." + m.Name
	}
	return "task.exec"
}

// Fields returns the log fields identifying the attempt.
func (m TaskMeta) Fields() []Field {
	return []Field{
		F("task.id", m.ID),
		F("task.priority", m.Priority),
		F("task.attempt", m.Attempt),
	}
}

// TaskTracer wraps OpenTelemetry tracing with task-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type TaskTracer interface {
	// StartSpan starts a span for one task attempt.
	StartSpan(ctx context.Context, meta TaskMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type taskTracer struct {
	tracer trace.Tracer
}

// NewTaskTracer creates a TaskTracer on top of t.
func NewTaskTracer(t trace.Tracer) TaskTracer {
	if t == nil {
		return NopTaskTracer()
	}
	return &taskTracer{tracer: t}
}

func (t *taskTracer) StartSpan(ctx context.Context, meta TaskMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("task.id", meta.ID),
		attribute.String("task.priority", meta.Priority),
		attribute.Int("task.attempt", meta.Attempt),
		attribute.Bool("task.error", false),
	}
	if meta.Name != "" {
		attrs = append(attrs, attribute.String("task.name", meta.Name))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *taskTracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("task.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTaskTracer struct {
	noop trace.Tracer
}

// NopTaskTracer returns a TaskTracer whose spans are never recorded.
func NopTaskTracer() TaskTracer {
	return &noopTaskTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTaskTracer) StartSpan(ctx context.Context, meta TaskMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTaskTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
