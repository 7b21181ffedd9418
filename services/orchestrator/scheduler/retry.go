package scheduler

import (
	"math"
	"time"
)

// RetryPolicy controls how a failed turn is retried. The zero MaxAttempts
// retries forever.
type RetryPolicy struct {
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy retries every 2s without limit.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delay: 2 * time.Second, Multiplier: 1}
}

// Backoff returns the wait before the retry that follows the given number
// of consecutive failures.
func (p RetryPolicy) Backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.Delay) * math.Pow(mult, float64(failures-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Exhausted reports whether no further retry is allowed.
func (p RetryPolicy) Exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}
