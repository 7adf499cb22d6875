// Package resilience provides the admission-control primitives used by the
// task scheduler.
//
// # Patterns
//
//   - RateController: an interval gate whose rate adapts to the success
//     ratio of recent work, within fixed bounds.
//
//   - CircuitBreaker: a Closed/Open/Half-Open guard that stops calling a
//     failing dependency after a threshold and lets a single trial call
//     through once the recovery timeout has passed.
//
//   - Bulkhead: a semaphore bounding concurrent operations.
//
//   - Timeout: bounds an operation and turns panics into errors.
//
//   - Backoff: growing delays for work the circuit breaker turned away.
//
// # Usage
//
// The Executor composes the patterns into one admission pipeline and feeds
// outcomes back into the rate controller:
//
//	rc := resilience.NewRateController(resilience.RateControllerConfig{
//	    InitialRate: 10,
//	    MinRate:     1,
//	    MaxRate:     100,
//	})
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  time.Minute,
//	})
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateController(rc),
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithDefaultTimeout(30*time.Second),
//	)
//
//	v, err := exec.Call(ctx, 0, func(ctx context.Context) (any, error) {
//	    return fetch(ctx, url)
//	})
//	switch {
//	case errors.Is(err, resilience.ErrNotAdmitted):
//	    // ctx ended while waiting for a permit; the operation never ran
//	case errors.Is(err, resilience.ErrCircuitOpen):
//	    // rejected without running; try again later
//	}
package resilience
