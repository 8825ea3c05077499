package infergate

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/coldharbor/infergate/internal/cache"
	"github.com/coldharbor/infergate/internal/driver"
	"github.com/coldharbor/infergate/internal/metrics"
	"github.com/coldharbor/infergate/internal/observability"
)

const (
	defaultCacheMaxSize         = 150
	defaultCacheTTL             = 60 * time.Minute
	defaultCircuitResetWindow   = 60 * time.Second
	defaultSelfHealInterval     = 5 * time.Minute
	defaultSimilarityThreshold  = 0.9
	defaultMaxAttempts          = 6
	defaultProbeRateLimit       = 5 // probes per second during Initialize/SelfHeal
)

// RouterConfig configures a Router at construction. The provider list is
// immutable after construction; self-heal and periodic probing are opt-in
// via the public SelfHeal method and a timer owned by the caller.
type RouterConfig struct {
	Providers   []driver.ProviderConfig
	Credentials driver.CredentialProvider

	HTTPClient *http.Client

	CacheMaxSize int
	CacheTTL     time.Duration

	CircuitResetWindow  time.Duration
	SelfHealInterval    time.Duration
	SimilarityThreshold float64

	// ProbeRateLimit bounds how many reachability probes Initialize/SelfHeal
	// may issue per second, via golang.org/x/time/rate.
	ProbeRateLimit rate.Limit

	Logger  *observability.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Collector

	// SharedCache, when set, mirrors cache writes to a shared backend (e.g.
	// Redis) in addition to the Router's local LRU cache.
	SharedCache *cache.Mirror
}

func (cfg *RouterConfig) withDefaults() RouterConfig {
	out := *cfg
	if out.CacheMaxSize <= 0 {
		out.CacheMaxSize = defaultCacheMaxSize
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = defaultCacheTTL
	}
	if out.CircuitResetWindow <= 0 {
		out.CircuitResetWindow = defaultCircuitResetWindow
	}
	if out.SelfHealInterval <= 0 {
		out.SelfHealInterval = defaultSelfHealInterval
	}
	if out.SimilarityThreshold <= 0 {
		out.SimilarityThreshold = defaultSimilarityThreshold
	}
	if out.ProbeRateLimit <= 0 {
		out.ProbeRateLimit = defaultProbeRateLimit
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{}
	}
	if out.Logger == nil {
		out.Logger = observability.NewLogger(observability.LoggerConfig{JSONFormat: true})
	}
	return out
}
