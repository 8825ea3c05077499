package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSuccessSeedsHealthyAfterThreeStreak(t *testing.T) {
	h := New("p1", time.Minute)
	require.Equal(t, StatusUnknown, h.Snapshot().Status)

	h.RecordSuccess(100, 80)
	assert.Equal(t, StatusHealthy, h.Snapshot().Status, "first success from unknown transitions to healthy")

	h.RecordFailure()
	h.RecordFailure()
	assert.Equal(t, StatusDegraded, h.Snapshot().Status)

	h.RecordFailure()
	snap := h.Snapshot()
	assert.Equal(t, StatusUnhealthy, snap.Status)
	assert.True(t, snap.CircuitOpen)

	h.RecordSuccess(50, 90)
	h.RecordSuccess(50, 90)
	assert.True(t, h.Snapshot().CircuitOpen, "breaker stays open until 3 consecutive successes")
	h.RecordSuccess(50, 90)
	snap = h.Snapshot()
	assert.False(t, snap.CircuitOpen)
	assert.Equal(t, StatusHealthy, snap.Status)
}

func TestBreakerOpenBlocksAvailabilityUntilResetWindow(t *testing.T) {
	h := New("p1", 10*time.Millisecond)
	h.RecordFailure()
	h.RecordFailure()
	h.RecordFailure()
	require.True(t, h.Snapshot().CircuitOpen)
	assert.False(t, h.IsAvailable())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, h.IsAvailable(), "half-open admission after reset window")
}

func TestSuccessRateDefaultsToOneWithNoRequests(t *testing.T) {
	h := New("p1", time.Minute)
	assert.Equal(t, float64(1), h.Snapshot().SuccessRate())
}

func TestLatencyAndQualityRingsAreBounded(t *testing.T) {
	h := New("p1", time.Minute)
	for i := 0; i < 100; i++ {
		h.RecordSuccess(1000, 10)
	}
	snap := h.Snapshot()
	assert.Equal(t, float64(1000), snap.AverageLatencyMs)
	assert.Equal(t, float64(10), snap.AverageQuality)
}

func TestScoreWeighting(t *testing.T) {
	h := New("p1", time.Minute)
	h.RecordSuccess(0, 100)
	h.RecordSuccess(0, 100)
	h.RecordSuccess(0, 100)
	// successRate=1 -> 40; latency=0 -> 30; quality=100 -> 30
	assert.InDelta(t, 100, h.Score(), 0.001)
}

func TestResetClearsBreakerAndStatus(t *testing.T) {
	h := New("p1", time.Minute)
	h.RecordFailure()
	h.RecordFailure()
	h.RecordFailure()
	require.True(t, h.Snapshot().CircuitOpen)

	h.Reset()
	snap := h.Snapshot()
	assert.False(t, snap.CircuitOpen)
	assert.Equal(t, StatusUnknown, snap.Status)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
}
