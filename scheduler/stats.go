package scheduler

import (
	"time"

	"github.com/jonwraymond/taskops/batch"
	"github.com/jonwraymond/taskops/resilience"
	"github.com/jonwraymond/taskops/task"
)

// Stats is a point-in-time view of the scheduler and its components.
type Stats struct {
	// Counters, monotonic.
	Submitted int64
	Completed int64
	Failed    int64
	Retried   int64 // requeues after a failed attempt
	Deferred  int64 // requeues after an open-circuit rejection
	Dropped   int64

	// Gauges.
	Queued     int
	Running    int
	Waiting    int // deferred tasks not yet back in the queue
	QueueDepth map[task.Priority]int

	Rate    resilience.RateStats
	Circuit resilience.CircuitBreakerMetrics
	Batch   batch.Stats

	Uptime         time.Duration
	TasksPerSecond float64
	SuccessRate    float64
}

// Pending returns the tasks that are neither finished nor dropped.
func (s Stats) Pending() int {
	return s.Queued + s.Running + s.Waiting
}

// Balanced reports whether every submitted task is accounted for.
func (s Stats) Balanced() bool {
	return s.Submitted == s.Completed+s.Failed+int64(s.Pending())+s.Dropped
}

// Stats returns a snapshot. It has no side effects.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Submitted:  s.count.submitted,
		Completed:  s.count.completed,
		Failed:     s.count.failed,
		Retried:    s.count.retried,
		Deferred:   s.count.deferred,
		Dropped:    s.count.dropped,
		Queued:     s.queue.len(),
		Running:    s.running,
		Waiting:    len(s.deferred),
		QueueDepth: s.queue.depths(),
	}
	startedAt := s.startedAt
	s.mu.Unlock()

	st.Rate = s.rate.Stats()
	st.Circuit = s.circuit.Metrics()
	st.Batch = s.batch.Stats()

	if !startedAt.IsZero() {
		st.Uptime = time.Since(startedAt)
	}
	st.TasksPerSecond = float64(st.Completed) / max(time.Second, st.Uptime).Seconds()
	if st.Submitted > 0 {
		st.SuccessRate = float64(st.Completed) / float64(st.Submitted)
	}
	return st
}
