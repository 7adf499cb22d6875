package resilience

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffConfig configures the delay schedule for work that was turned away
// before it ran, such as calls rejected by an open circuit.
type BackoffConfig struct {
	// InitialInterval is the first delay.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps a single delay.
	// Default: 5 seconds
	MaxInterval time.Duration

	// Multiplier grows the delay after each call to Next.
	// Default: 2.0
	Multiplier float64

	// Jitter is the randomization factor applied to each delay, in [0, 1).
	// Default: 0 (no jitter)
	Jitter float64
}

// Backoff produces exponentially growing, jittered delays.
// It is not safe for concurrent use; give each deferred unit its own.
type Backoff struct {
	b *backoff.ExponentialBackOff
}

// NewBackoff creates a backoff schedule.
func NewBackoff(config BackoffConfig) *Backoff {
	// Apply defaults
	if config.InitialInterval <= 0 {
		config.InitialInterval = 100 * time.Millisecond
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = 5 * time.Second
	}
	if config.MaxInterval < config.InitialInterval {
		config.MaxInterval = config.InitialInterval
	}
	if config.Multiplier <= 1 {
		config.Multiplier = 2.0
	}
	if config.Jitter < 0 || config.Jitter >= 1 {
		config.Jitter = 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialInterval
	b.MaxInterval = config.MaxInterval
	b.Multiplier = config.Multiplier
	b.RandomizationFactor = config.Jitter
	b.Reset()

	return &Backoff{b: b}
}

// Next returns the next delay.
func (b *Backoff) Next() time.Duration {
	return b.b.NextBackOff()
}

// Reset restarts the schedule at the initial interval.
func (b *Backoff) Reset() {
	b.b.Reset()
}
