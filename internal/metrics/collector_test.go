package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector()
	c.MustRegister(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestAttemptsTotalCountsByProviderAndOutcome(t *testing.T) {
	c := NewCollector()
	c.AttemptsTotal.WithLabelValues("openai-chat", "success").Inc()
	c.AttemptsTotal.WithLabelValues("openai-chat", "success").Inc()
	c.AttemptsTotal.WithLabelValues("local-chat", "failure").Inc()

	var metric dto.Metric
	require.NoError(t, c.AttemptsTotal.WithLabelValues("openai-chat", "success").Write(&metric))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestCacheCountersIndependentlyTrack(t *testing.T) {
	c := NewCollector()
	c.CacheHitsTotal.Inc()
	c.CacheHitsTotal.Inc()
	c.CacheMissesTotal.Inc()

	var hits, misses dto.Metric
	require.NoError(t, c.CacheHitsTotal.Write(&hits))
	require.NoError(t, c.CacheMissesTotal.Write(&misses))
	assert.Equal(t, float64(2), hits.GetCounter().GetValue())
	assert.Equal(t, float64(1), misses.GetCounter().GetValue())
}
