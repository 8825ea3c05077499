// Package probe implements the cheap reachability checks the Router uses
// at Initialize and during periodic self-heal.
package probe

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const defaultProbeTimeout = 5 * time.Second

// Prober issues a bounded GET against a provider endpoint and reports
// reachability. It holds no provider state itself; the caller (Router)
// decides what to do with the result.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New constructs a Prober. A nil logger falls back to slog.Default().
func New(timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Probe issues a GET against endpoint and reports whether it responded
// without a transport error. A non-2xx/3xx status still counts as
// "reachable" here — the Router only uses Probe to decide whether a
// provider is worth admitting into the candidate list, not to validate its
// API contract.
func (p *Prober) Probe(ctx context.Context, providerID, endpoint string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		p.logger.Warn("probe request build failed", "provider", providerID, "error", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe unreachable", "provider", providerID, "error", err)
		return false
	}
	defer resp.Body.Close()
	return true
}
