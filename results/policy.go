package results

import "time"

// Policy configures how long outcomes are retained.
type Policy struct {
	// DefaultTTL is the retention used when none is specified.
	// If zero, nothing is retained.
	DefaultTTL time.Duration

	// MaxTTL caps override TTLs. If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default retention policy.
// DefaultTTL: 10 minutes, MaxTTL: 1 hour
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 10 * time.Minute,
		MaxTTL:     time.Hour,
	}
}

// NoRetention returns a policy that keeps nothing.
func NoRetention() Policy {
	return Policy{}
}

// Retains reports whether outcomes are kept at all.
func (p Policy) Retains() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to use, applying the default and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
