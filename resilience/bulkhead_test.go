package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBulkhead(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})

	if b.config.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", b.config.MaxConcurrent)
	}
}

func TestBulkhead_FailFast(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2, FailFast: true})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Errorf("First Acquire() error = %v", err)
	}
	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Second Acquire() error = %v", err)
	}
	if err := b.Acquire(ctx); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Third Acquire() error = %v, want ErrBulkheadFull", err)
	}

	b.Release()

	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Acquire after release error = %v", err)
	}
	if b.Metrics().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", b.Metrics().Rejected)
	}
}

func TestBulkhead_WaitsForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("First Acquire() error = %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Release()
	}()

	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Acquire() after release = %v", err)
	}
}

func TestBulkhead_MaxWait(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	ctx := context.Background()

	_ = b.Acquire(ctx)

	if err := b.Acquire(ctx); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Acquire() = %v, want ErrBulkheadFull", err)
	}
}

func TestBulkhead_ContextCancelled(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	_ = b.Acquire(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := b.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() = %v, want DeadlineExceeded", err)
	}
	if b.Metrics().Rejected != 0 {
		t.Errorf("Rejected = %d, want 0 for caller cancellation", b.Metrics().Rejected)
	}
}

func TestBulkhead_LimitsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 3})
	ctx := context.Background()

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(ctx, func(ctx context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	m := b.Metrics()
	if m.Active != 0 || m.Available != 3 {
		t.Errorf("Active/Available = %d/%d, want 0/3", m.Active, m.Available)
	}
	if m.MaxActive > 3 || m.MaxActive < 1 {
		t.Errorf("MaxActive = %d, want 1..3", m.MaxActive)
	}
}

func TestBulkheadMetrics_Utilization(t *testing.T) {
	m := BulkheadMetrics{Active: 3, MaxConcurrent: 4}
	if m.Utilization() != 75 {
		t.Errorf("Utilization = %v, want 75", m.Utilization())
	}
	if (BulkheadMetrics{}).Utilization() != 0 {
		t.Error("Utilization of empty metrics should be 0")
	}
}
