// Command gateway runs the inference gateway: a Router, a Cache, and a
// webhook Dispatcher wired together behind a small HTTP surface.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	infergate "github.com/coldharbor/infergate"
	"github.com/coldharbor/infergate/internal/archive"
	"github.com/coldharbor/infergate/internal/cache"
	"github.com/coldharbor/infergate/internal/config"
	"github.com/coldharbor/infergate/internal/metrics"
	"github.com/coldharbor/infergate/internal/observability"
	"github.com/coldharbor/infergate/internal/streaming"
	"github.com/coldharbor/infergate/internal/webhook"
	"github.com/coldharbor/infergate/pkg/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to gateway config")
	flag.Parse()

	logger := observability.NewLogger(observability.LoggerConfig{JSONFormat: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	collector.MustRegister(registry)

	archiver := newArchiver(logger)
	dispatcher := webhook.New(webhook.DispatcherConfig{Logger: logger, Archiver: archiver, Metrics: collector})

	router := infergate.New(infergate.RouterConfig{
		Providers:           cfg.ToProviderConfigs(),
		Credentials:         config.NewEnvCredentials(cfg.Providers),
		CacheMaxSize:        cfg.Cache.MaxSize,
		CacheTTL:            time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		CircuitResetWindow:  time.Duration(cfg.Router.CircuitResetWindowSeconds) * time.Second,
		SelfHealInterval:    time.Duration(cfg.Router.SelfHealIntervalMinutes) * time.Minute,
		SimilarityThreshold: cfg.Router.SimilarityThreshold,
		ProbeRateLimit:      rate.Limit(cfg.Router.ProbeRateLimit),
		Logger:              logger,
		Tracer:              noop.NewTracerProvider().Tracer("infergate"),
		Metrics:             collector,
		SharedCache:         newSharedCache(cfg, logger),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router.Initialize(ctx)
	go runSelfHeal(ctx, router, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz(router))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/chat", handleChat(router, dispatcher))

	addr := cfg.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// newSharedCache wires a Mirror's shared tier: a Redis backend when
// REDIS_URL is set, sharing completions across gateway replicas, or an
// in-process backend otherwise, which still exercises the Mirror code path
// for a single-replica deployment without requiring Redis.
func newSharedCache(cfg *config.GatewayConfig, logger *observability.Logger) *cache.Mirror {
	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	local := cache.New(cache.Config{MaxSize: cfg.Cache.MaxSize, TTL: ttl})

	backend, err := sharedBackend(ttl, logger)
	if err != nil {
		logger.Error("shared cache backend unavailable, falling back to in-process", "error", err)
	}
	return cache.NewMirror(local, backend, ttl)
}

func sharedBackend(ttl time.Duration, logger *observability.Logger) (cache.Backend, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return cache.NewInProcessBackend(ttl), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return cache.NewInProcessBackend(ttl), err
	}

	client := redis.NewClient(opts)
	return cache.NewRedisBackend(client, "infergate:cache:"), nil
}

// newArchiver wires an optional S3 archiver for webhook delivery logs when
// INFERGATE_S3_BUCKET is set.
func newArchiver(logger *observability.Logger) webhook.Archiver {
	s3cfg := archive.DefaultS3Config()
	if s3cfg.BucketName == "" {
		return nil
	}
	archiver, err := archive.NewS3Archiver(s3cfg)
	if err != nil {
		logger.Error("failed to construct S3 archiver, delivery archiving disabled", "error", err)
		return nil
	}
	return archiver
}

func runSelfHeal(ctx context.Context, router *infergate.Router, logger *observability.Logger) {
	interval := router.SelfHealInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			router.SelfHeal(ctx)
			logger.Debug("self-heal pass complete")
		}
	}
}

func handleHealthz(router *infergate.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := router.Status()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}

type chatRequest struct {
	Messages []types.Message `json:"messages"`
}

// handleChat streams a Router.Chat call out as Server-Sent Events and
// dispatches a "completion.finished" webhook event once the chat resolves.
func handleChat(router *infergate.Router, dispatcher *webhook.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		forwarder, err := streaming.NewForwarder(w)
		if err != nil {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		router.Chat(r.Context(), req.Messages, infergate.Callbacks{
			OnToken:  forwarder.Token,
			OnStatus: forwarder.Status,
			OnComplete: func(result *types.CompletionResult) {
				if result == nil {
					return
				}
				forwarder.Complete(result.Content, result.Provider, result.Model, result.QualityScore, result.FromCache)
				dispatcher.Dispatch("completion.finished", map[string]any{
					"provider":     result.Provider,
					"model":        result.Model,
					"tokensUsed":   result.TokensUsed,
					"qualityScore": result.QualityScore,
					"fromCache":    result.FromCache,
				}, webhook.DispatchMeta{})
			},
			OnError: forwarder.Error,
		})
	}
}
