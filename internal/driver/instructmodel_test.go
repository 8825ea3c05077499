package driver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldharbor/infergate/pkg/types"
)

func TestInstructModelTrimsPrefixUpToMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Contains(t, string(body), "[/INST]")
		w.Write([]byte(`[{"generated_text":"<s>[INST] hello [/INST] the actual answer"}]`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	config := ProviderConfig{ID: "instruct", Endpoint: srv.URL, Timeout: time.Second}
	messages := []types.Message{
		{Role: types.RoleSystem, Content: "be helpful"},
		{Role: types.RoleUser, Content: "hello"},
	}
	err := InstructModel{}.Stream(context.Background(), config, messages, sink)
	require.NoError(t, err)
	assert.Equal(t, "the actual answer", sink.content())
}

func TestInstructModelAcceptsObjectShapedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generated_text":"[/INST] object answer"}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	config := ProviderConfig{ID: "instruct", Endpoint: srv.URL, Timeout: time.Second}
	err := InstructModel{}.Stream(context.Background(), config, nil, sink)
	require.NoError(t, err)
	assert.Equal(t, "object answer", sink.content())
}
