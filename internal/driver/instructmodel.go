package driver

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/coldharbor/infergate/internal/httputil"
	"github.com/coldharbor/infergate/internal/streaming"
	"github.com/coldharbor/infergate/pkg/errors"
	"github.com/coldharbor/infergate/pkg/types"
)

const instructStopMarker = "[/INST]"

// InstructModel wraps the conversation in a Llama-style instruction prompt
// and expects a Hugging-Face-style text-generation response.
type InstructModel struct {
	HTTPClient *http.Client
}

func (d InstructModel) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d InstructModel) Stream(ctx context.Context, config ProviderConfig, messages []types.Message, sink Sink) error {
	sink.OnStatus("Connecting to " + config.DisplayName + "…")

	prompt := buildInstructPrompt(messages)
	body, err := json.Marshal(map[string]any{
		"inputs": prompt,
		"parameters": map[string]any{
			"max_new_tokens": config.MaxOutputTokens,
			"temperature":    0.7,
			"do_sample":      true,
		},
	})
	if err != nil {
		return errors.BadResponse(config.ID, "failed to encode request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.Endpoint, bytes.NewReader(body))
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
		return errors.BadStatus(config.ID, resp.StatusCode, "instruct model request failed")
	}

	raw, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
	if err != nil {
		return errors.BadResponse(config.ID, "response body too large")
	}

	generated, err := extractGeneratedText(raw)
	if err != nil {
		return errors.BadResponse(config.ID, err.Error())
	}

	return streaming.SyntheticReplay(ctx, generated, sink.OnToken)
}

func buildInstructPrompt(messages []types.Message) string {
	var system, lastUser string
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = m.Content
		case types.RoleUser:
			lastUser = m.Content
		}
	}

	var b strings.Builder
	b.WriteString("<s>[INST] ")
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	b.WriteString(lastUser)
	b.WriteString(" [/INST]")
	return b.String()
}

func extractGeneratedText(raw []byte) (string, error) {
	var asArray []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &asArray); err == nil && len(asArray) > 0 {
		return trimAfterInstructMarker(asArray[0].GeneratedText), nil
	}

	var asObject struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.GeneratedText != "" {
		return trimAfterInstructMarker(asObject.GeneratedText), nil
	}

	return "", errUnparseableInstructResponse
}

var errUnparseableInstructResponse = instructParseErr{}

type instructParseErr struct{}

func (instructParseErr) Error() string { return "malformed instruct model response" }

func trimAfterInstructMarker(text string) string {
	if idx := strings.LastIndex(text, instructStopMarker); idx != -1 {
		return strings.TrimSpace(text[idx+len(instructStopMarker):])
	}
	return strings.TrimSpace(text)
}
