// Package infergate implements the Reliable Multi-Provider Inference
// Gateway: a Provider Router with health-aware failover, a Response Cache,
// and a Webhook Dispatcher (in internal/webhook), composed the way
// cmd/gateway wires them for a single process.
package infergate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/coldharbor/infergate/internal/cache"
	"github.com/coldharbor/infergate/internal/driver"
	"github.com/coldharbor/infergate/internal/health"
	"github.com/coldharbor/infergate/internal/metrics"
	"github.com/coldharbor/infergate/internal/observability"
	"github.com/coldharbor/infergate/internal/probe"
	drivererrors "github.com/coldharbor/infergate/pkg/errors"
	"github.com/coldharbor/infergate/pkg/types"
)

// Router streams chat completions across a prioritized, health-aware set
// of provider drivers, falling through to Offline on total failure. A
// Router is an explicit constructed value; callers own its lifetime and
// decide when to Initialize or SelfHeal it.
type Router struct {
	providers   []driver.ProviderConfig
	driversByID map[string]driver.Driver
	healthByID  map[string]*health.Health

	cache       *cache.Cache
	sharedCache *cache.Mirror

	credentials driver.CredentialProvider
	prober      *probe.Prober
	limiter     *rate.Limiter

	similarityThreshold float64
	selfHealInterval    time.Duration

	logger  *observability.Logger
	tracer  trace.Tracer
	metrics *metrics.Collector

	initOnce sync.Once

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc

	requestsTotal  atomic.Int64
	cacheHitsTotal atomic.Int64
	completedTotal atomic.Int64
	failedTotal    atomic.Int64
	sumLatencyMs   atomic.Int64
}

const maxAttempts = 6

// New constructs a Router from cfg. Construction never performs network
// I/O; call Initialize (or let the first Chat do so) to probe providers.
func New(cfg RouterConfig) *Router {
	resolved := cfg.withDefaults()

	r := &Router{
		providers:           resolved.Providers,
		driversByID:         make(map[string]driver.Driver, len(resolved.Providers)),
		healthByID:          make(map[string]*health.Health, len(resolved.Providers)),
		cache:               cache.New(cache.Config{MaxSize: resolved.CacheMaxSize, TTL: resolved.CacheTTL}),
		sharedCache:         resolved.SharedCache,
		credentials:         resolved.Credentials,
		prober:              probe.New(5*time.Second, resolved.Logger.Slog()),
		limiter:             rate.NewLimiter(resolved.ProbeRateLimit, 1),
		similarityThreshold: resolved.SimilarityThreshold,
		selfHealInterval:    resolved.SelfHealInterval,
		logger:              resolved.Logger,
		tracer:              resolved.Tracer,
		metrics:             resolved.Metrics,
		cancels:             make(map[string]context.CancelFunc),
	}

	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer("infergate")
	}

	deps := driver.Dependencies{HTTPClient: resolved.HTTPClient, Credentials: resolved.Credentials}
	for _, p := range resolved.Providers {
		drv, err := driver.New(p.Kind, deps)
		if err != nil {
			r.logger.Error("skipping provider with unknown kind", "provider", p.ID, "kind", p.Kind, "error", err)
			continue
		}
		r.driversByID[p.ID] = drv
		r.healthByID[p.ID] = health.New(p.ID, resolved.CircuitResetWindow)
	}

	return r
}

// Initialize probes each non-Offline provider with a cheap reachability
// check, updating Health. Idempotent and safe to call from multiple
// goroutines; only the first call actually probes.
func (r *Router) Initialize(ctx context.Context) {
	r.initOnce.Do(func() {
		r.probeAll(ctx)
	})
}

func (r *Router) probeAll(ctx context.Context) {
	for _, p := range r.providers {
		if p.Kind == driver.KindOffline {
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		reachable := r.prober.Probe(ctx, p.ID, p.Endpoint)
		h := r.healthByID[p.ID]
		if h == nil {
			continue
		}
		if reachable {
			h.RecordSuccess(0, 70)
		} else {
			h.RecordFailure()
		}
		r.observeHealth(p.ID, h)
	}
}

// SelfHeal periodically (the caller drives the timer; SelfHeal itself
// probes once per call) re-probes every unhealthy non-Offline provider and
// resets its breaker on a reachable response.
func (r *Router) SelfHeal(ctx context.Context) {
	for _, p := range r.providers {
		if p.Kind == driver.KindOffline {
			continue
		}
		h := r.healthByID[p.ID]
		if h == nil || h.Snapshot().Status != health.StatusUnhealthy {
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
		if r.prober.Probe(ctx, p.ID, p.Endpoint) {
			h.Reset()
			r.observeHealth(p.ID, h)
		}
	}
}

// Chat streams a completion, invoking callbacks as described on the
// Callbacks type. Exactly one of OnComplete/OnError fires unless
// the caller cancels ctx or calls Cancel, in which case OnComplete fires
// with a nil result.
func (r *Router) Chat(ctx context.Context, messages []types.Message, callbacks Callbacks) {
	r.Initialize(ctx)
	r.requestsTotal.Add(1)

	requestCtx, cancel := context.WithCancel(ctx)
	id := r.trackCancel(cancel)
	defer r.untrackCancel(id)
	defer cancel()

	chatCtx, span := observability.StartChatSpan(requestCtx, r.tracer, observability.ChatSpanAttributes{
		RequestID: uuid.NewString(),
		Messages:  len(messages),
		Stream:    true,
	})
	defer span.End()

	key := r.cache.Key(messages)
	if entry, ok := r.cache.Get(key); ok {
		r.emitCacheHit(callbacks, entry)
		return
	}
	if entry, ok := r.cache.GetSimilar(messages, r.similarityThreshold); ok {
		r.emitCacheHit(callbacks, entry)
		return
	}
	if r.metrics != nil {
		r.metrics.CacheMissesTotal.Inc()
	}

	excluded := make(map[string]struct{})
	previousName := ""

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := r.selectCandidate(excluded)
		if candidate == nil {
			r.failedTotal.Add(1)
			callbacks.error(fmt.Errorf("infergate: no providers available"))
			return
		}

		if previousName != "" && previousName != candidate.DisplayName {
			callbacks.providerSwitch(previousName, candidate.DisplayName)
		}
		previousName = candidate.DisplayName

		truncated := truncateMessages(messages, candidate.ContextTokens)
		callbacks.status(fmt.Sprintf("Connecting to %s…", candidate.DisplayName))

		attemptCtx, attemptSpan := observability.StartAttemptSpan(chatCtx, r.tracer, observability.AttemptSpanAttributes{
			Provider: candidate.ID,
			Model:    candidate.ModelHint,
			Attempt:  attempt + 1,
		})

		result, err := r.runAttempt(attemptCtx, *candidate, truncated, callbacks)
		if r.metrics != nil {
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			r.metrics.AttemptsTotal.WithLabelValues(candidate.ID, outcome).Inc()
		}

		if err == nil {
			observability.RecordAttemptOutcome(attemptSpan, result.TokensUsed, result.QualityScore, false)
			attemptSpan.End()
			r.recordCompletion(result.LatencyMs)
			callbacks.complete(result)
			return
		}

		observability.RecordError(attemptSpan, err)
		attemptSpan.End()

		if isCancelledErr(err) {
			callbacks.complete(nil)
			return
		}

		if h := r.healthByID[candidate.ID]; h != nil {
			h.RecordFailure()
			r.observeHealth(candidate.ID, h)
		}
		excluded[candidate.ID] = struct{}{}

		backoff := time.Duration(minInt(500*(attempt+1), 2000)) * time.Millisecond
		select {
		case <-requestCtx.Done():
			callbacks.complete(nil)
			return
		case <-time.After(backoff):
		}
	}

	r.failedTotal.Add(1)
	callbacks.error(fmt.Errorf("infergate: all providers exhausted"))
}

// runAttempt drives one provider's Stream call, accumulating tokens and
// measuring latency.
func (r *Router) runAttempt(ctx context.Context, config driver.ProviderConfig, messages []types.Message, callbacks Callbacks) (*types.CompletionResult, error) {
	var builder strings.Builder
	sink := &accumulatingSink{
		onStatus: callbacks.status,
		onToken: func(tok string) {
			builder.WriteString(tok)
			if callbacks.OnToken != nil {
				callbacks.OnToken(tok)
			}
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	start := time.Now()
	drv := r.driversByID[config.ID]
	err := drv.Stream(timeoutCtx, config, messages, sink)
	elapsed := time.Since(start)
	latencyMs := elapsed.Milliseconds()

	if r.metrics != nil {
		r.metrics.AttemptLatency.WithLabelValues(config.ID).Observe(elapsed.Seconds())
	}

	if err != nil {
		if timeoutCtx.Err() != nil && ctx.Err() == nil {
			return nil, drivererrors.DriverTimeout(config.ID)
		}
		return nil, err
	}

	content := builder.String()
	quality := driver.Score(content)
	if config.Kind == driver.KindOffline {
		quality = 50
	}

	if h := r.healthByID[config.ID]; h != nil {
		h.RecordSuccess(float64(latencyMs), quality)
		r.observeHealth(config.ID, h)
	}

	if len(content) > 50 {
		r.storeCache(messages, content, config, quality)
	}

	return &types.CompletionResult{
		Content:      content,
		Provider:     config.ID,
		Model:        config.ModelHint,
		TokensUsed:   estimateTokens(content),
		LatencyMs:    latencyMs,
		FromCache:    false,
		QualityScore: quality,
	}, nil
}

func (r *Router) storeCache(messages []types.Message, content string, config driver.ProviderConfig, quality int) {
	r.cache.Set(messages, content, config.ID, config.ModelHint, quality)
	if r.sharedCache != nil {
		key := r.cache.Key(messages)
		_ = r.sharedCache.Store(context.Background(), key, content, config.ID, config.ModelHint, quality)
	}
}

func (r *Router) emitCacheHit(callbacks Callbacks, entry cache.Entry) {
	r.cacheHitsTotal.Add(1)
	if r.metrics != nil {
		r.metrics.CacheHitsTotal.Inc()
	}
	if callbacks.OnToken != nil {
		callbacks.OnToken(entry.Content)
	}
	result := &types.CompletionResult{
		Content:      entry.Content,
		Provider:     entry.Provider,
		Model:        entry.Model,
		TokensUsed:   estimateTokens(entry.Content),
		LatencyMs:    0,
		FromCache:    true,
		QualityScore: entry.Quality,
	}
	r.recordCompletion(0)
	callbacks.complete(result)
}

// Complete is the non-streaming convenience form of Chat: it assembles
// tokens itself and resolves with the result (or an error).
func (r *Router) Complete(ctx context.Context, prompt string) (*types.CompletionResult, error) {
	messages := []types.Message{{Role: types.RoleUser, Content: prompt}}

	var (
		result *types.CompletionResult
		fail   error
		done   = make(chan struct{})
	)
	r.Chat(ctx, messages, Callbacks{
		OnComplete: func(res *types.CompletionResult) {
			result = res
			close(done)
		},
		OnError: func(err error) {
			fail = err
			close(done)
		},
	})
	<-done

	if fail != nil {
		return nil, fail
	}
	return result, nil
}

// Cancel aborts every in-flight Chat call belonging to this Router
// instance. The active provider driver observes the cancellation at its
// next suspension point and stops producing tokens promptly.
func (r *Router) Cancel() {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}

func (r *Router) trackCancel(cancel context.CancelFunc) string {
	id := uuid.NewString()
	r.cancelMu.Lock()
	r.cancels[id] = cancel
	r.cancelMu.Unlock()
	return id
}

func (r *Router) untrackCancel(id string) {
	r.cancelMu.Lock()
	delete(r.cancels, id)
	r.cancelMu.Unlock()
}

// Status summarizes Router activity.
func (r *Router) Status() types.SystemStatus {
	total := r.requestsTotal.Load()
	hits := r.cacheHitsTotal.Load()
	completed := r.completedTotal.Load()

	var hitRate, successRate, avgLatency float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
		successRate = float64(completed) / float64(total)
	} else {
		successRate = 1
	}
	if completed > 0 {
		avgLatency = float64(r.sumLatencyMs.Load()) / float64(completed)
	}

	return types.SystemStatus{
		TotalRequests:  total,
		CacheHits:      hits,
		CacheHitRate:   hitRate,
		AverageLatency: avgLatency,
		SuccessRate:    successRate,
	}
}

// ProviderHealth returns a snapshot of every configured provider's Health.
func (r *Router) ProviderHealth() []health.Snapshot {
	out := make([]health.Snapshot, 0, len(r.providers))
	for _, p := range r.providers {
		if h := r.healthByID[p.ID]; h != nil {
			out = append(out, h.Snapshot())
		}
	}
	return out
}

// ClearCache empties the Response Cache.
func (r *Router) ClearCache() {
	r.cache.Clear()
}

// SelfHealInterval reports how often the caller should invoke SelfHeal, per
// RouterConfig.SelfHealInterval (or its default).
func (r *Router) SelfHealInterval() time.Duration {
	return r.selfHealInterval
}

func (r *Router) observeHealth(providerID string, h *health.Health) {
	if r.metrics == nil {
		return
	}
	r.metrics.ProviderHealth.WithLabelValues(providerID).Set(h.Score())
}

func (r *Router) recordCompletion(latencyMs int64) {
	r.completedTotal.Add(1)
	r.sumLatencyMs.Add(latencyMs)
}

// selectCandidate implements the provider selection algorithm: filter by
// exclusion/circuit/credential, then sort by priority ascending, score
// descending. Offline bypasses the circuit and credential checks since it
// is always considered available.
func (r *Router) selectCandidate(excluded map[string]struct{}) *driver.ProviderConfig {
	var candidates []driver.ProviderConfig
	for _, p := range r.providers {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		if p.Kind != driver.KindOffline {
			if h := r.healthByID[p.ID]; h != nil && !h.IsAvailable() {
				continue
			}
			if p.RequiresKey {
				if r.credentials == nil {
					continue
				}
				if _, present := r.credentials.Get(p.Kind); !present {
					continue
				}
			}
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return r.score(candidates[i].ID) > r.score(candidates[j].ID)
	})
	return &candidates[0]
}

func (r *Router) score(providerID string) float64 {
	if h := r.healthByID[providerID]; h != nil {
		return h.Score()
	}
	return 0
}

func isCancelledErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	de, ok := err.(*drivererrors.DriverError)
	return ok && de.Kind == drivererrors.KindCancelled
}

// accumulatingSink adapts Callbacks into a driver.Sink.
type accumulatingSink struct {
	onStatus func(string)
	onToken  func(string)
}

func (s *accumulatingSink) OnStatus(status string) { s.onStatus(status) }
func (s *accumulatingSink) OnToken(token string)   { s.onToken(token) }
