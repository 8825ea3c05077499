package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldharbor/infergate/pkg/types"
)

func TestSimpleTextGetEncodesPromptAndReplays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, "/", r.URL.Path)
		w.Write([]byte("this is a plain text completion"))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	config := ProviderConfig{ID: "text", Endpoint: srv.URL, Timeout: time.Second}
	err := SimpleTextGet{}.Stream(context.Background(), config, []types.Message{{Role: types.RoleUser, Content: "hi"}}, sink)
	require.NoError(t, err)
	assert.Equal(t, "this is a plain text completion", sink.content())
}

func TestSimpleTextGetRejectsHTMLAndShortBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<!DOCTYPE html><html></html>"))
	}))
	defer srv.Close()

	config := ProviderConfig{ID: "text", Endpoint: srv.URL, Timeout: time.Second}
	err := SimpleTextGet{}.Stream(context.Background(), config, nil, &recordingSink{})
	require.Error(t, err)
}
