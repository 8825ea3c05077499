package driver

import (
	"bytes"
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/coldharbor/infergate/internal/httputil"
	"github.com/coldharbor/infergate/internal/streaming"
	"github.com/coldharbor/infergate/pkg/errors"
	"github.com/coldharbor/infergate/pkg/types"
)

const productName = "infergate"

// OpenAIChatFree is OpenAIChat without bearer auth, decorated with
// HTTP-Referer/X-Title headers. When the provider config says streaming
// isn't supported, it issues a non-streaming request and synthetic-replays
// the full response instead.
type OpenAIChatFree struct {
	HTTPClient *http.Client
}

func (d OpenAIChatFree) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d OpenAIChatFree) Stream(ctx context.Context, config ProviderConfig, messages []types.Message, sink Sink) error {
	sink.OnStatus("Connecting to " + config.DisplayName + "…")

	stream := config.SupportsStreaming
	body, err := json.Marshal(map[string]any{
		"model":      config.ModelHint,
		"messages":   wireMessages(messages),
		"stream":     stream,
		"max_tokens": config.MaxOutputTokens,
	})
	if err != nil {
		return errors.BadResponse(config.ID, "failed to encode request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Unreachable(config.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://"+productName+".dev")
	req.Header.Set("X-Title", productName)

	resp, err := d.client().Do(req)
	if err != nil {
		return classifyNetErr(ctx, config.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.BadStatus(config.ID, resp.StatusCode, "openai-compatible free request failed")
	}

	if !stream {
		raw, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
		if err != nil {
			return errors.BadResponse(config.ID, "response body too large")
		}
		var parsed struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
			return errors.BadResponse(config.ID, "malformed completion body")
		}
		return streaming.SyntheticReplay(ctx, parsed.Choices[0].Message.Content, sink.OnToken)
	}

	return streaming.ScanSSE(resp.Body, func(data []byte) error {
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			sink.OnToken(chunk.Choices[0].Delta.Content)
		}
		return nil
	})
}
