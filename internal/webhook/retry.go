package webhook

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retrySchedule implements backoff.BackOff with the Dispatcher's exact
// retry arithmetic: initialDelay * multiplier^(attempt-1) + jitter,
// capped at maxDelay, where jitter is uniform in [0, 0.1*delay). The
// Dispatcher consults it directly to compute NextRetryAt rather than
// driving an opaque retry loop, since each Delivery's pending/retrying
// state must stay inspectable through List/Stats.
type retrySchedule struct {
	policy  RetryPolicy
	attempt int
}

func newRetrySchedule(policy RetryPolicy) *retrySchedule {
	return &retrySchedule{policy: policy}
}

// NextBackOff returns the delay before the next attempt, or
// backoff.Stop once maxRetries has been reached.
func (r *retrySchedule) NextBackOff() time.Duration {
	r.attempt++
	if r.attempt >= r.policy.MaxRetries {
		return backoff.Stop
	}
	return r.delayFor(r.attempt)
}

// delayFor computes the delay that precedes retry attempt a (1-indexed,
// the attempt that just failed).
func (r *retrySchedule) delayFor(a int) time.Duration {
	base := float64(r.policy.InitialDelayMs) * math.Pow(r.policy.BackoffMultiplier, float64(a-1))
	jitter := rand.Float64() * 0.1 * base
	delayMs := base + jitter
	if delayMs > float64(r.policy.MaxDelayMs) {
		delayMs = float64(r.policy.MaxDelayMs)
	}
	return time.Duration(delayMs) * time.Millisecond
}

// reset restarts the schedule from the first attempt.
func (r *retrySchedule) reset() {
	r.attempt = 0
}
