// Package metrics exposes Prometheus instrumentation for the Router and
// Dispatcher, registered once per process and wired into cmd/gateway's
// /metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles every metric the gateway exports. Construct one with
// NewCollector and register it with a prometheus.Registerer.
type Collector struct {
	AttemptsTotal    *prometheus.CounterVec
	AttemptLatency   *prometheus.HistogramVec
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	ProviderHealth   *prometheus.GaugeVec

	DeliveriesTotal   *prometheus.CounterVec
	DeliveryLatency   prometheus.Histogram
	PendingRetries    prometheus.Gauge
}

// NewCollector constructs a Collector with unregistered metric vectors.
func NewCollector() *Collector {
	return &Collector{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infergate",
			Subsystem: "router",
			Name:      "attempts_total",
			Help:      "Total provider attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		AttemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "infergate",
			Subsystem: "router",
			Name:      "attempt_latency_seconds",
			Help:      "Latency of individual provider attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infergate",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits, exact or similarity-matched.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infergate",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses.",
		}),
		ProviderHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "infergate",
			Subsystem: "router",
			Name:      "provider_health_score",
			Help:      "Current Health.Score() per provider.",
		}, []string{"provider"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infergate",
			Subsystem: "dispatcher",
			Name:      "deliveries_total",
			Help:      "Total webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "infergate",
			Subsystem: "dispatcher",
			Name:      "delivery_latency_seconds",
			Help:      "Latency of webhook delivery HTTP attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		PendingRetries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "infergate",
			Subsystem: "dispatcher",
			Name:      "pending_retries",
			Help:      "Deliveries currently scheduled for retry.",
		}),
	}
}

// MustRegister registers every metric on reg, panicking on duplicate
// registration (matching prometheus.MustRegister's convention).
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.AttemptsTotal,
		c.AttemptLatency,
		c.CacheHitsTotal,
		c.CacheMissesTotal,
		c.ProviderHealth,
		c.DeliveriesTotal,
		c.DeliveryLatency,
		c.PendingRetries,
	)
}
