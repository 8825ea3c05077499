package streaming

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
)

// bufferPool reduces per-request allocation for the JSON frames written to
// clients by reusing encode buffers across frames.
var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// Forwarder writes Router.Chat callback events to an http.ResponseWriter as
// Server-Sent Events, so cmd/gateway can expose streaming chat over plain
// HTTP without re-implementing SSE framing at the handler call site.
type Forwarder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewForwarder validates that w supports flushing and sets SSE headers.
func NewForwarder(w http.ResponseWriter) (*Forwarder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &Forwarder{w: w, flusher: flusher}, nil
}

type tokenFrame struct {
	Token string `json:"token"`
}

type statusFrame struct {
	Status string `json:"status"`
}

type completeFrame struct {
	Content      string `json:"content"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	QualityScore int    `json:"qualityScore"`
	FromCache    bool   `json:"fromCache"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// Token writes one OnToken event.
func (f *Forwarder) Token(token string) { f.writeEvent("token", tokenFrame{Token: token}) }

// Status writes one OnStatus event.
func (f *Forwarder) Status(status string) { f.writeEvent("status", statusFrame{Status: status}) }

// Complete writes the terminal OnComplete event.
func (f *Forwarder) Complete(content, provider, model string, quality int, fromCache bool) {
	f.writeEvent("complete", completeFrame{
		Content: content, Provider: provider, Model: model,
		QualityScore: quality, FromCache: fromCache,
	})
}

// Error writes the terminal OnError event.
func (f *Forwarder) Error(err error) {
	f.writeEvent("error", errorFrame{Error: err.Error()})
}

func (f *Forwarder) writeEvent(event string, payload any) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return
	}

	fmt.Fprintf(f.w, "event: %s\n", event)
	f.w.Write([]byte(sseDataPrefix))
	f.w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	f.w.Write([]byte("\n\n"))
	f.flusher.Flush()
}
