package streaming

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarderWritesSSEFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	f, err := NewForwarder(rec)
	require.NoError(t, err)

	f.Status("Connecting to local…")
	f.Token("hello")
	f.Complete("hello", "offline", "template", 50, false)

	body := rec.Body.String()
	assert.Contains(t, body, "event: status")
	assert.Contains(t, body, "event: token")
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, `"token":"hello"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestScanSSEStopsAtDone(t *testing.T) {
	body := "data: {\"a\":1}\n\ndata: {\"a\":2}\n\ndata: [DONE]\n\ndata: {\"a\":3}\n\n"
	var seen []string
	err := ScanSSE(strings.NewReader(body), func(data []byte) error {
		seen = append(seen, string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, seen)
}

func TestScanNDJSONSkipsBlankLines(t *testing.T) {
	body := "{\"a\":1}\n\n{\"a\":2}\n"
	var lines []string
	err := ScanNDJSON(strings.NewReader(body), func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, lines)
}
