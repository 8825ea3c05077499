package driver

import (
	"bytes"
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/coldharbor/infergate/internal/streaming"
	"github.com/coldharbor/infergate/pkg/errors"
	"github.com/coldharbor/infergate/pkg/types"
)

// OpenAIChat speaks the OpenAI-compatible chat-completions streaming
// protocol: bearer auth, SSE body, "choices[0].delta.content" frames.
type OpenAIChat struct {
	HTTPClient  *http.Client
	Credentials CredentialProvider
}

func (d OpenAIChat) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d OpenAIChat) Stream(ctx context.Context, config ProviderConfig, messages []types.Message, sink Sink) error {
	sink.OnStatus("Connecting to " + config.DisplayName + "…")

	var apiKey string
	if config.RequiresKey {
		if d.Credentials == nil {
			return errors.CredentialMissing(config.ID, "no credential provider configured")
		}
		key, present := d.Credentials.Get(config.Kind)
		if !present {
			return errors.CredentialMissing(config.ID, "missing API key")
		}
		apiKey = key
	}

	body, err := json.Marshal(map[string]any{
		"model":      config.ModelHint,
		"messages":   wireMessages(messages),
		"stream":     true,
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
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return classifyNetErr(ctx, config.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.BadStatus(config.ID, resp.StatusCode, "openai-compatible stream request failed")
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
