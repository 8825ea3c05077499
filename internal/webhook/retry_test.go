package webhook

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
)

func TestRetryScheduleGeometricGrowthWithCap(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, InitialDelayMs: 1000, MaxDelayMs: 300000, BackoffMultiplier: 2}
	r := newRetrySchedule(policy)

	d1 := r.NextBackOff()
	assert.GreaterOrEqual(t, d1, 1000*time.Millisecond)
	assert.Less(t, d1, 1100*time.Millisecond)

	d2 := r.NextBackOff()
	assert.GreaterOrEqual(t, d2, 2000*time.Millisecond)
	assert.Less(t, d2, 2200*time.Millisecond)

	d3 := r.NextBackOff()
	assert.GreaterOrEqual(t, d3, 4000*time.Millisecond)
}

func TestRetryScheduleStopsAtMaxRetries(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, InitialDelayMs: 1000, MaxDelayMs: 300000, BackoffMultiplier: 2}
	r := newRetrySchedule(policy)

	r.NextBackOff()
	d := r.NextBackOff()
	assert.Equal(t, backoff.Stop, d)
}

func TestRetryScheduleCapsAtMaxDelay(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 10, InitialDelayMs: 1000, MaxDelayMs: 5000, BackoffMultiplier: 2}
	r := newRetrySchedule(policy)

	r.NextBackOff()      // attempt 1: ~1000ms
	r.NextBackOff()      // attempt 2: ~2000ms
	r.NextBackOff()      // attempt 3: ~4000-4400ms, still under cap
	d := r.NextBackOff() // attempt 4: ~8000-8800ms before the cap
	assert.Equal(t, 5000*time.Millisecond, d)
}

func TestRetryScheduleResetRestartsGeometry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, InitialDelayMs: 1000, MaxDelayMs: 300000, BackoffMultiplier: 2}
	r := newRetrySchedule(policy)

	r.NextBackOff()
	r.NextBackOff()
	r.reset()

	d := r.NextBackOff()
	assert.GreaterOrEqual(t, d, 1000*time.Millisecond)
	assert.Less(t, d, 1100*time.Millisecond)
}
