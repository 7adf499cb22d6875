package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means a single trial request is testing recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open after the last
	// failure. The first call made strictly after it elapses is the trial.
	// Default: 60 seconds
	RecoveryTimeout time.Duration

	// OnStateChange is called after the circuit state changes, outside the
	// breaker's lock.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern.
//
// Every state check and transition happens under one mutex; the protected
// operation itself runs without it.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trial       bool
	rejected    int64
	trips       int64
}

type transition struct {
	from, to State
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := Call(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Call runs op through cb and returns its value. When the circuit rejects the
// call, op is not invoked and the error is ErrCircuitOpen.
func Call[T any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.beforeRequest(); err != nil {
		return zero, err
	}

	finished := false
	defer func() {
		// a panicking op still releases the half-open trial
		if !finished {
			cb.afterRequest(ErrPanic)
		}
	}()

	v, err := op(ctx)
	finished = true
	cb.afterRequest(err)
	return v, err
}

// State returns the current circuit state. It never causes a transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	old := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.trial = false
	cb.mu.Unlock()

	if old != StateClosed {
		cb.notify(&transition{from: old, to: StateClosed})
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	var tr *transition
	defer func() {
		cb.mu.Unlock()
		cb.notify(tr)
	}()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.config.RecoveryTimeout {
			cb.rejected++
			return ErrCircuitOpen
		}
		tr = cb.setStateLocked(StateHalfOpen)
		cb.trial = true
	case StateHalfOpen:
		if cb.trial {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.trial = true
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	var tr *transition
	defer func() {
		cb.mu.Unlock()
		cb.notify(tr)
	}()

	isFailure := cb.config.IsFailure(err)

	switch cb.state {
	case StateClosed:
		if !isFailure {
			cb.failures = 0
			return
		}
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.failures >= cb.config.FailureThreshold {
			tr = cb.setStateLocked(StateOpen)
		}

	case StateHalfOpen:
		cb.trial = false
		if isFailure {
			cb.failures++
			cb.lastFailure = cb.now()
			tr = cb.setStateLocked(StateOpen)
			return
		}
		cb.failures = 0
		tr = cb.setStateLocked(StateClosed)

	case StateOpen:
		// a call admitted before the circuit opened finished late
		if isFailure {
			cb.failures++
			cb.lastFailure = cb.now()
		}
	}
}

func (cb *CircuitBreaker) setStateLocked(state State) *transition {
	if cb.state == state {
		return nil
	}
	tr := &transition{from: cb.state, to: state}
	cb.state = state
	if state == StateOpen {
		cb.trips++
	}
	return tr
}

func (cb *CircuitBreaker) notify(tr *transition) {
	if tr != nil && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(tr.from, tr.to)
	}
}

// Config returns the circuit breaker configuration.
func (cb *CircuitBreaker) Config() CircuitBreakerConfig {
	return cb.config
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:       cb.state,
		Failures:    cb.failures,
		Rejected:    cb.rejected,
		Trips:       cb.trips,
		LastFailure: cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Rejected    int64
	Trips       int64
	LastFailure time.Time
}
