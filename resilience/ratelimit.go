package resilience

import (
	"context"
	"sync"
	"time"
)

// RateControllerConfig configures the adaptive rate controller.
type RateControllerConfig struct {
	// InitialRate is the starting permit rate in requests per second.
	// It is clamped into [MinRate, MaxRate].
	// Default: 10
	InitialRate float64

	// MinRate is the lowest rate the controller will throttle down to.
	// Default: 1
	MinRate float64

	// MaxRate is the highest rate the controller will speed up to.
	// Default: 100
	MaxRate float64

	// Window is the number of recorded outcomes per adjustment.
	// Default: 10
	Window int

	// IncreaseAbove is the success ratio above which the rate grows.
	// Default: 0.9
	IncreaseAbove float64

	// DecreaseBelow is the success ratio below which the rate shrinks.
	// Default: 0.7
	DecreaseBelow float64

	// IncreaseFactor multiplies the rate on a healthy window.
	// Default: 1.1
	IncreaseFactor float64

	// DecreaseFactor multiplies the rate on an unhealthy window.
	// Default: 0.8
	DecreaseFactor float64

	// OnRateChange is called, outside the controller's lock, whenever an
	// adjustment changes the rate.
	OnRateChange func(old, new float64)
}

// RateController spaces permits at least 1/rate apart and adapts the rate
// to the success ratio of the last Window outcomes.
//
// Windows do not overlap: the counters reset after every adjustment.
type RateController struct {
	config RateControllerConfig
	now    func() time.Time

	mu        sync.Mutex
	rate      float64
	successes int
	errors    int
	lastGrant time.Time
	windows   int64
	increases int64
	decreases int64
	granted   int64
	waited    time.Duration
}

// NewRateController creates a new adaptive rate controller.
func NewRateController(config RateControllerConfig) *RateController {
	// Apply defaults
	if config.MinRate <= 0 {
		config.MinRate = 1
	}
	if config.MaxRate <= 0 {
		config.MaxRate = 100
	}
	if config.MaxRate < config.MinRate {
		config.MaxRate = config.MinRate
	}
	if config.InitialRate <= 0 {
		config.InitialRate = 10
	}
	config.InitialRate = clamp(config.InitialRate, config.MinRate, config.MaxRate)
	if config.Window <= 0 {
		config.Window = 10
	}
	if config.IncreaseAbove <= 0 {
		config.IncreaseAbove = 0.9
	}
	if config.DecreaseBelow <= 0 {
		config.DecreaseBelow = 0.7
	}
	if config.IncreaseFactor <= 1 {
		config.IncreaseFactor = 1.1
	}
	if config.DecreaseFactor <= 0 || config.DecreaseFactor >= 1 {
		config.DecreaseFactor = 0.8
	}

	return &RateController{
		config: config,
		now:    time.Now,
		rate:   config.InitialRate,
	}
}

// Acquire blocks until the minimum interval since the previous permit has
// elapsed. Permits are handed out in the order Acquire is called.
//
// The slot is reserved before sleeping, so a caller whose ctx ends while
// waiting still consumes it. Acquire only fails with ctx.Err().
func (rc *RateController) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rc.mu.Lock()
	now := rc.now()
	slot := now
	if !rc.lastGrant.IsZero() {
		if next := rc.lastGrant.Add(rc.intervalLocked()); next.After(now) {
			slot = next
		}
	}
	rc.lastGrant = slot
	wait := slot.Sub(now)
	rc.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	rc.mu.Lock()
	rc.granted++
	rc.waited += wait
	rc.mu.Unlock()
	return nil
}

// RecordSuccess records a successful outcome.
func (rc *RateController) RecordSuccess() {
	rc.record(true)
}

// RecordError records a failed outcome.
func (rc *RateController) RecordError() {
	rc.record(false)
}

func (rc *RateController) record(success bool) {
	rc.mu.Lock()

	if success {
		rc.successes++
	} else {
		rc.errors++
	}

	total := rc.successes + rc.errors
	if total < rc.config.Window {
		rc.mu.Unlock()
		return
	}

	ratio := float64(rc.successes) / float64(total)
	old := rc.rate

	switch {
	case ratio > rc.config.IncreaseAbove:
		rc.rate = min(rc.rate*rc.config.IncreaseFactor, rc.config.MaxRate)
	case ratio < rc.config.DecreaseBelow:
		rc.rate = max(rc.rate*rc.config.DecreaseFactor, rc.config.MinRate)
	}

	rc.successes = 0
	rc.errors = 0
	rc.windows++
	if rc.rate > old {
		rc.increases++
	} else if rc.rate < old {
		rc.decreases++
	}
	current := rc.rate
	rc.mu.Unlock()

	if current != old && rc.config.OnRateChange != nil {
		rc.config.OnRateChange(old, current)
	}
}

// CurrentRate returns the permitted rate in requests per second.
func (rc *RateController) CurrentRate() float64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.rate
}

// Reset restores the initial rate and discards the current window.
func (rc *RateController) Reset() {
	rc.mu.Lock()
	old := rc.rate
	rc.rate = rc.config.InitialRate
	rc.successes = 0
	rc.errors = 0
	rc.lastGrant = time.Time{}
	rc.mu.Unlock()

	if old != rc.config.InitialRate && rc.config.OnRateChange != nil {
		rc.config.OnRateChange(old, rc.config.InitialRate)
	}
}

// Config returns the rate controller configuration.
func (rc *RateController) Config() RateControllerConfig {
	return rc.config
}

// Stats returns current rate controller statistics.
func (rc *RateController) Stats() RateStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return RateStats{
		Current:         rc.rate,
		Min:             rc.config.MinRate,
		Max:             rc.config.MaxRate,
		WindowSuccesses: rc.successes,
		WindowErrors:    rc.errors,
		Windows:         rc.windows,
		Increases:       rc.increases,
		Decreases:       rc.decreases,
		Granted:         rc.granted,
		TotalWait:       rc.waited,
	}
}

func (rc *RateController) intervalLocked() time.Duration {
	return time.Duration(float64(time.Second) / rc.rate)
}

// RateStats contains rate controller statistics.
type RateStats struct {
	Current         float64
	Min             float64
	Max             float64
	WindowSuccesses int
	WindowErrors    int
	Windows         int64
	Increases       int64
	Decreases       int64
	Granted         int64
	TotalWait       time.Duration
}

// Throttled reports whether the controller has been pushed down to its floor.
func (s RateStats) Throttled() bool {
	return s.Current <= s.Min && s.Min < s.Max
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
