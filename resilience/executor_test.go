package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExecutor_Empty(t *testing.T) {
	e := NewExecutor()

	called := false
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("Execute() = %v, called = %v", err, called)
	}
}

func TestExecutor_RecordsOutcomes(t *testing.T) {
	rc := NewRateController(RateControllerConfig{InitialRate: 1000, MaxRate: 1000, Window: 100})
	e := NewExecutor(WithRateController(rc))
	ctx := context.Background()

	_ = e.Execute(ctx, func(ctx context.Context) error { return nil })
	_ = e.Execute(ctx, func(ctx context.Context) error { return errTest })

	s := rc.Stats()
	if s.WindowSuccesses != 1 || s.WindowErrors != 1 {
		t.Errorf("window = %d/%d, want 1/1", s.WindowSuccesses, s.WindowErrors)
	}
}

func TestExecutor_CircuitRejectionNotRecorded(t *testing.T) {
	rc := NewRateController(RateControllerConfig{InitialRate: 1000, MaxRate: 1000, Window: 100})
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	e := NewExecutor(WithRateController(rc), WithCircuitBreaker(cb))
	ctx := context.Background()

	_ = e.Execute(ctx, func(ctx context.Context) error { return errTest })

	called := false
	err := e.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("operation ran while circuit open")
	}
	if s := rc.Stats(); s.WindowErrors != 1 || s.WindowSuccesses != 0 {
		t.Errorf("window = %d/%d, want 0/1", s.WindowSuccesses, s.WindowErrors)
	}
}

func TestExecutor_DownstreamCircuitErrorRecorded(t *testing.T) {
	rc := NewRateController(RateControllerConfig{InitialRate: 1000, MaxRate: 1000, Window: 100})
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 10, RecoveryTimeout: time.Hour})
	e := NewExecutor(WithRateController(rc), WithCircuitBreaker(cb))

	called := false
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return fmt.Errorf("downstream: %w", ErrCircuitOpen)
	})
	if !called {
		t.Fatal("operation did not run through a closed circuit")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() = %v, want wrapped ErrCircuitOpen", err)
	}
	if s := rc.Stats(); s.WindowErrors != 1 {
		t.Errorf("window errors = %d, want 1", s.WindowErrors)
	}
}

func TestExecutor_BulkheadRejectionNotRecorded(t *testing.T) {
	rc := NewRateController(RateControllerConfig{InitialRate: 1000, MaxRate: 1000, Window: 100})
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, FailFast: true})
	e := NewExecutor(WithRateController(rc), WithBulkhead(b))

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	err := e.Execute(context.Background(), func(ctx context.Context) error { return nil })
	b.Release()

	if !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("Execute() = %v, want ErrBulkheadFull", err)
	}
	if s := rc.Stats(); s.WindowErrors != 0 || s.WindowSuccesses != 0 {
		t.Errorf("window = %d/%d, want 0/0", s.WindowSuccesses, s.WindowErrors)
	}
}

func TestExecutor_TimeoutCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	e := NewExecutor(WithCircuitBreaker(cb), WithDefaultTimeout(10*time.Millisecond))

	_, err := e.Call(context.Background(), 0, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Call() = %v, want ErrTimeout", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after timeout", cb.State())
	}
}

func TestExecutor_PerCallTimeoutOverrides(t *testing.T) {
	e := NewExecutor(WithDefaultTimeout(time.Hour))

	_, err := e.Call(context.Background(), 10*time.Millisecond, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Call() = %v, want ErrTimeout", err)
	}
}

func TestExecutor_NotAdmitted(t *testing.T) {
	rc := NewRateController(RateControllerConfig{InitialRate: 1, MinRate: 1, MaxRate: 1})
	e := NewExecutor(WithRateController(rc))

	_ = e.Execute(context.Background(), func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := e.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNotAdmitted) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() = %v, want ErrNotAdmitted wrapping DeadlineExceeded", err)
	}
	if called {
		t.Error("operation ran without a permit")
	}
}

func TestExecutor_DetachedExecution(t *testing.T) {
	e := NewExecutor(WithDetachedExecution())

	ctx, cancel := context.WithCancel(context.Background())
	v, err := e.Call(ctx, 0, func(runCtx context.Context) (any, error) {
		cancel()
		time.Sleep(5 * time.Millisecond)
		return "done", runCtx.Err()
	})
	if err != nil || v != "done" {
		t.Errorf("Call() = %v, %v; want done, nil", v, err)
	}
}

func TestExecutor_Bulkhead(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, FailFast: true})
	e := NewExecutor(WithBulkhead(b))

	inside := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = e.Execute(context.Background(), func(ctx context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	err := e.Execute(context.Background(), func(ctx context.Context) error { return nil })
	close(release)

	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() = %v, want ErrBulkheadFull", err)
	}
}
