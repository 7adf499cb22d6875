package resilience

import (
	"context"
	"testing"
	"time"
)

// BenchmarkCircuitBreaker_Execute_Closed measures happy path execution.
func BenchmarkCircuitBreaker_Execute_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 100,
		RecoveryTimeout:  time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, passing)
	}
}

// BenchmarkCircuitBreaker_Execute_Open measures the rejection path.
func BenchmarkCircuitBreaker_Execute_Open(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
	})
	ctx := context.Background()
	_ = cb.Execute(ctx, failing)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, passing)
	}
}

// BenchmarkCircuitBreaker_Concurrent measures parallel execution.
func BenchmarkCircuitBreaker_Concurrent(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1000,
		RecoveryTimeout:  time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cb.Execute(ctx, passing)
		}
	})
}

// BenchmarkRateController_Record measures outcome recording.
func BenchmarkRateController_Record(b *testing.B) {
	rc := NewRateController(RateControllerConfig{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%4 == 0 {
			rc.RecordError()
		} else {
			rc.RecordSuccess()
		}
	}
}

// BenchmarkRateController_Acquire measures permit grants at a rate high
// enough that Acquire rarely sleeps.
func BenchmarkRateController_Acquire(b *testing.B) {
	rc := NewRateController(RateControllerConfig{InitialRate: 1e9, MaxRate: 1e9})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rc.Acquire(ctx)
	}
}

// BenchmarkBulkhead_Execute measures slot acquisition overhead.
func BenchmarkBulkhead_Execute(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 100})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bh.Execute(ctx, passing)
	}
}

// BenchmarkExecutor_Call measures the full admission pipeline.
func BenchmarkExecutor_Call(b *testing.B) {
	e := NewExecutor(
		WithRateController(NewRateController(RateControllerConfig{InitialRate: 1e9, MaxRate: 1e9})),
		WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{})),
	)
	ctx := context.Background()
	op := func(ctx context.Context) (any, error) { return nil, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Call(ctx, 0, op)
	}
}
