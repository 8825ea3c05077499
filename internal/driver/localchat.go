package driver

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/coldharbor/infergate/internal/httputil"
	"github.com/coldharbor/infergate/internal/streaming"
	"github.com/coldharbor/infergate/pkg/errors"
	"github.com/coldharbor/infergate/pkg/types"
)

const localChatReachabilityTimeout = 3 * time.Second

var preferredLocalModels = []string{"llama3.2", "llama3.1", "llama3", "mistral", "codellama", "phi3"}

// LocalChat talks to an Ollama-shaped local server: GET /api/tags to pick a
// model, then POST /api/chat and stream newline-delimited JSON chunks.
type LocalChat struct {
	HTTPClient *http.Client
}

func (d LocalChat) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d LocalChat) Stream(ctx context.Context, config ProviderConfig, messages []types.Message, sink Sink) error {
	sink.OnStatus("Connecting to " + config.DisplayName + "…")

	model, err := d.pickModel(ctx, config)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": wireMessages(messages),
		"stream":   true,
		"options": map[string]any{
			"temperature": 0.7,
			"num_predict": config.MaxOutputTokens,
		},
	})
	if err != nil {
		return errors.BadResponse(config.ID, "failed to encode request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return errors.Unreachable(config.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client().Do(req)
	if err != nil {
		return classifyNetErr(ctx, config.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.BadStatus(config.ID, resp.StatusCode, "local chat stream request failed")
	}

	err = streaming.ScanNDJSON(resp.Body, func(line []byte) error {
		var chunk struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done bool `json:"done"`
		}
		if jsonErr := json.Unmarshal(line, &chunk); jsonErr != nil {
			return nil // skip malformed lines, matching the reference's leniency
		}
		if chunk.Message.Content != "" {
			sink.OnToken(chunk.Message.Content)
		}
		if chunk.Done {
			return errStopIteration
		}
		return nil
	})
	if err == errStopIteration {
		return nil
	}
	return err
}

func (d LocalChat) pickModel(ctx context.Context, config ProviderConfig) (string, error) {
	tagsCtx, cancel := context.WithTimeout(ctx, localChatReachabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tagsCtx, http.MethodGet, config.Endpoint+"/api/tags", nil)
	if err != nil {
		return "", errors.Unreachable(config.ID, err)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return "", classifyNetErr(ctx, config.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", errors.BadStatus(config.ID, resp.StatusCode, "tags request failed")
	}

	raw, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
	if err != nil {
		return "", errors.BadResponse(config.ID, "tags body too large")
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(raw, &tags); err != nil || len(tags.Models) == 0 {
		return "", errors.BadResponse(config.ID, "no models available")
	}

	for _, prefix := range preferredLocalModels {
		for _, m := range tags.Models {
			if strings.HasPrefix(strings.ToLower(m.Name), prefix) {
				return m.Name, nil
			}
		}
	}
	return tags.Models[0].Name, nil
}

func wireMessages(messages []types.Message) []map[string]string {
	out := make([]map[string]string, len(messages))
	for i, m := range messages {
		out[i] = map[string]string{"role": string(m.Role), "content": m.Content}
	}
	return out
}

// errStopIteration is a sentinel used internally to break out of a scan loop
// early without treating it as a failure.
var errStopIteration = &stopIteration{}

type stopIteration struct{}

func (*stopIteration) Error() string { return "stop iteration" }

func classifyNetErr(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return errors.Cancelled(provider)
	}
	return errors.Unreachable(provider, err)
}
