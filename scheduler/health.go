package scheduler

import (
	"context"

	"github.com/jonwraymond/taskops/health"
	"github.com/jonwraymond/taskops/resilience"
)

// HealthChecker returns a checker named "scheduler".
//
// It reports unhealthy when the scheduler is not running or the circuit is
// open, degraded while the circuit is half-open or the rate is pinned to its
// floor, and healthy otherwise.
func (s *Scheduler) HealthChecker() health.Checker {
	return health.CheckerFunc("scheduler", s.checkHealth)
}

func (s *Scheduler) checkHealth(_ context.Context) health.Result {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	st := s.Stats()
	details := map[string]any{
		"queued":   st.Queued,
		"running":  st.Running,
		"deferred": st.Waiting,
		"rate":     st.Rate.Current,
		"circuit":  st.Circuit.State.String(),
	}

	var r health.Result
	switch {
	case state == stateIdle:
		r = health.Unhealthy("scheduler not started", ErrNotStarted)
	case state != stateRunning:
		r = health.Unhealthy("scheduler stopped", ErrClosed)
	case st.Circuit.State == resilience.StateOpen:
		r = health.Unhealthy("circuit open", resilience.ErrCircuitOpen)
	case st.Circuit.State == resilience.StateHalfOpen:
		r = health.Degraded("circuit half-open")
	case st.Rate.Throttled():
		r = health.Degraded("dispatch rate at minimum")
	default:
		r = health.Healthy("scheduler running")
	}
	return r.WithDetails(details)
}
