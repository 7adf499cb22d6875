package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/jonwraymond/taskops/batch"
	"github.com/jonwraymond/taskops/resilience"
	"github.com/jonwraymond/taskops/results"
	"github.com/jonwraymond/taskops/task"
)

func benchConfig() Config {
	c := DefaultConfig()
	c.DispatchWorkers = 4
	c.PollInterval = time.Millisecond
	c.Rate = resilience.RateControllerConfig{InitialRate: 1e9, MinRate: 1e9, MaxRate: 1e9}
	c.Batch = batch.Config{BatchSize: 64, MaxWorkers: 8}
	c.Retention = results.NoRetention()
	return c
}

func BenchmarkScheduler_SubmitAndRun(b *testing.B) {
	s := New(benchConfig())
	if err := s.Start(context.Background()); err != nil {
		b.Fatal(err)
	}
	defer func() { _ = s.Shutdown(context.Background()) }()

	body := task.Func(func(ctx context.Context) (any, error) { return nil, nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Submit(task.New(body)); err != nil {
			b.Fatal(err)
		}
	}
	for s.Stats().Completed < int64(b.N) {
		time.Sleep(100 * time.Microsecond)
	}
}

func BenchmarkScheduler_Stats(b *testing.B) {
	s := New(benchConfig())
	body := task.Func(func(ctx context.Context) (any, error) { return nil, nil })
	for range 100 {
		_ = s.Submit(task.New(body))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Stats()
	}
}

func BenchmarkQueue_PushPop(b *testing.B) {
	q := newQueue()
	tasks := make([]*task.Task, 64)
	for i := range tasks {
		tasks[i] = task.New(task.Func(nil), task.WithPriority(task.Priorities[i%len(task.Priorities)]))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.push(tasks[i%len(tasks)], uint64(i))
		if q.len() > 32 {
			q.pop()
		}
	}
}
