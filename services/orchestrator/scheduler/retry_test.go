package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	for _, n := range []int{1, 2, 10, 1000} {
		assert.Equal(t, 2*time.Second, p.Backoff(n))
		assert.False(t, p.Exhausted(n))
	}
}

func TestExponentialBackoff(t *testing.T) {
	p := RetryPolicy{Delay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second, MaxAttempts: 4}

	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
	assert.Equal(t, 5*time.Second, p.Backoff(80))

	assert.False(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}
