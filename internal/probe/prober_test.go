package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(time.Second, nil)
	assert.True(t, p.Probe(context.Background(), "p1", srv.URL))
}

func TestProbeUnreachable(t *testing.T) {
	p := New(50*time.Millisecond, nil)
	assert.False(t, p.Probe(context.Background(), "p1", "http://127.0.0.1:1"))
}

func TestProbeStatusDoesNotMatter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(time.Second, nil)
	assert.True(t, p.Probe(context.Background(), "p1", srv.URL))
}
