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

type staticCreds map[Kind]string

func (c staticCreds) Get(kind Kind) (string, bool) {
	v, ok := c[kind]
	return v, ok
}

func TestOpenAIChatStreamsSSEDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.Contains(t, string(body), `"stream":true`)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	sink := &recordingSink{}
	config := ProviderConfig{ID: "openai", Kind: KindOpenAIChat, Endpoint: srv.URL, RequiresKey: true, Timeout: time.Second}
	drv := OpenAIChat{Credentials: staticCreds{KindOpenAIChat: "secret"}}
	err := drv.Stream(context.Background(), config, []types.Message{{Role: types.RoleUser, Content: "hi"}}, sink)

	require.NoError(t, err)
	assert.Equal(t, "Hello", sink.content())
}

func TestOpenAIChatMissingCredential(t *testing.T) {
	drv := OpenAIChat{}
	config := ProviderConfig{ID: "openai", RequiresKey: true}
	err := drv.Stream(context.Background(), config, nil, &recordingSink{})
	require.Error(t, err)
}
