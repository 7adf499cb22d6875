package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type middlewareFixture struct {
	mw      *Middleware
	spans   *tracetest.SpanRecorder
	metrics *sdkmetric.ManualReader
	logs    *bytes.Buffer
}

func newMiddlewareFixture(t *testing.T, level string) middlewareFixture {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	sink, reader := newTestSink(t)
	var logs bytes.Buffer
	mw := NewMiddleware(NewTaskTracer(tp.Tracer("test")), sink, NewLoggerWithWriter(level, &logs))
	return middlewareFixture{mw: mw, spans: spans, metrics: reader, logs: &logs}
}

func TestMiddleware_SuccessPath(t *testing.T) {
	fx := newMiddlewareFixture(t, "debug")
	meta := TaskMeta{ID: "t-1", Name: "fetch", Priority: "normal", Attempt: 1}

	wrapped := fx.mw.Wrap(func(ctx context.Context, m TaskMeta) (any, error) {
		return "ok", nil
	})
	result, err := wrapped(context.Background(), meta)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result %q, got %v", "ok", result)
	}

	ended := fx.spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Name() != "task.exec.fetch" {
		t.Errorf("expected span name task.exec.fetch, got %q", ended[0].Name())
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", ended[0].Status().Code)
	}

	rm := collect(t, fx.metrics)
	if got := sumWhere(t, rm, "task.exec.total"); got != 1 {
		t.Errorf("expected 1 attempt recorded, got %d", got)
	}

	var entry map[string]any
	if err := json.Unmarshal(fx.logs.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["msg"] != "task attempt succeeded" || entry["task.id"] != "t-1" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected duration_ms in log entry")
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	fx := newMiddlewareFixture(t, "info")
	errBoom := errors.New("boom")

	wrapped := fx.mw.Wrap(func(ctx context.Context, m TaskMeta) (any, error) {
		return nil, errBoom
	})
	_, err := wrapped(context.Background(), TaskMeta{ID: "t-2", Priority: "low", Attempt: 3})

	if !errors.Is(err, errBoom) {
		t.Fatalf("expected error to propagate unchanged, got: %v", err)
	}

	ended := fx.spans.Ended()
	if len(ended) != 1 || ended[0].Status().Code != codes.Error {
		t.Fatalf("expected 1 errored span, got %+v", ended)
	}

	rm := collect(t, fx.metrics)
	if got := sumWhere(t, rm, "task.exec.total", attribute.Bool("task.error", true)); got != 1 {
		t.Errorf("expected 1 failed attempt, got %d", got)
	}

	out := fx.logs.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected warn entry with error, got %s", out)
	}
}

func TestMiddleware_SuccessNotLoggedAtInfo(t *testing.T) {
	fx := newMiddlewareFixture(t, "info")

	wrapped := fx.mw.Wrap(func(ctx context.Context, m TaskMeta) (any, error) {
		return nil, nil
	})
	if _, err := wrapped(context.Background(), TaskMeta{ID: "quiet"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fx.logs.Len() != 0 {
		t.Errorf("expected no info output for success, got %s", fx.logs.String())
	}
}

func TestMiddleware_PanicRecordedThenRethrown(t *testing.T) {
	fx := newMiddlewareFixture(t, "info")

	wrapped := fx.mw.Wrap(func(ctx context.Context, m TaskMeta) (any, error) {
		panic("kaboom")
	})

	func() {
		defer func() {
			if r := recover(); r != "kaboom" {
				t.Errorf("expected panic to continue, recovered %v", r)
			}
		}()
		_, _ = wrapped(context.Background(), TaskMeta{ID: "p"})
	}()

	ended := fx.spans.Ended()
	if len(ended) != 1 || ended[0].Status().Code != codes.Error {
		t.Fatalf("expected panicking attempt to end its span with error, got %+v", ended)
	}
}

func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	fx := newMiddlewareFixture(t, "error")

	var inner trace.SpanContext
	wrapped := fx.mw.Wrap(func(ctx context.Context, m TaskMeta) (any, error) {
		inner = trace.SpanContextFromContext(ctx)
		return nil, nil
	})
	_, _ = wrapped(context.Background(), TaskMeta{ID: "ctx"})

	if !inner.IsValid() {
		t.Fatal("expected the attempt to run inside a span")
	}
	if inner.SpanID() != fx.spans.Ended()[0].SpanContext().SpanID() {
		t.Error("attempt context does not carry the middleware span")
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	wrapped := mw.Wrap(func(ctx context.Context, m TaskMeta) (any, error) {
		return 1, nil
	})
	if v, err := wrapped(context.Background(), TaskMeta{ID: "n"}); err != nil || v != 1 {
		t.Fatalf("expected 1, nil; got %v, %v", v, err)
	}
}

func TestMiddlewareFromObserver_Nil(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("expected ErrNilObserver, got %v", err)
	}
}

func TestMiddlewareFromObserver(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "svc"})
	if err != nil {
		t.Fatalf("failed to create observer: %v", err)
	}
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("failed to create middleware: %v", err)
	}
	wrapped := mw.Wrap(func(ctx context.Context, m TaskMeta) (any, error) {
		return "v", nil
	})
	if v, err := wrapped(context.Background(), TaskMeta{ID: "o"}); err != nil || v != "v" {
		t.Fatalf("expected v, nil; got %v, %v", v, err)
	}
}
