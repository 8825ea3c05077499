package driver

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/coldharbor/infergate/internal/httputil"
	"github.com/coldharbor/infergate/internal/streaming"
	"github.com/coldharbor/infergate/pkg/errors"
	"github.com/coldharbor/infergate/pkg/types"
)

// SimpleTextGet encodes the whole conversation as "role: content" lines in
// a single URL-encoded path segment and expects a plain text body back.
type SimpleTextGet struct {
	HTTPClient *http.Client
}

func (d SimpleTextGet) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d SimpleTextGet) Stream(ctx context.Context, config ProviderConfig, messages []types.Message, sink Sink) error {
	sink.OnStatus("Connecting to " + config.DisplayName + "…")

	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = string(m.Role) + ": " + m.Content
	}
	encoded := url.PathEscape(strings.Join(lines, "\n"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.Endpoint+"/"+encoded, nil)
	if err != nil {
		return errors.Unreachable(config.ID, err)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return classifyNetErr(ctx, config.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.BadStatus(config.ID, resp.StatusCode, "simple text get failed")
	}

	raw, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
	if err != nil {
		return errors.BadResponse(config.ID, "response body too large")
	}

	text := string(raw)
	if strings.HasPrefix(strings.TrimSpace(text), "<!DOCTYPE") || len(text) < 10 {
		return errors.BadResponse(config.ID, "response was not a completion body")
	}

	return streaming.SyntheticReplay(ctx, text, sink.OnToken)
}
