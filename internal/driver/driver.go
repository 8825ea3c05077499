// Package driver implements the per-provider-kind upstream protocols: one
// Stream call per attempt, streaming tokens to a Sink.
package driver

import (
	"context"
	"time"

	"github.com/coldharbor/infergate/pkg/types"
)

// Kind identifies an upstream protocol shape. ProviderConfig.Kind resolves
// to exactly one Driver at Router construction time (a small interface
// capability set, not a switch at the call site).
type Kind string

const (
	KindLocalChat       Kind = "local_chat"
	KindOpenAIChat      Kind = "openai_chat"
	KindOpenAIChatFree  Kind = "openai_chat_free"
	KindSimpleTextGet   Kind = "simple_text_get"
	KindInstructModel   Kind = "instruct_model"
	KindOffline         Kind = "offline"
)

// ProviderConfig is the immutable descriptor for one upstream provider.
type ProviderConfig struct {
	ID                string
	DisplayName       string
	Kind              Kind
	Endpoint          string
	ModelHint         string
	Priority          int
	ContextTokens     int
	MaxOutputTokens   int
	Timeout           time.Duration
	RequiresKey       bool
	SupportsStreaming bool
}

// Sink is what a Driver streams into during one attempt.
type Sink interface {
	OnStatus(status string)
	OnToken(token string)
}

// CredentialProvider resolves the credential for a driver Kind that
// RequiresKey. The Offline driver never calls it.
type CredentialProvider interface {
	Get(kind Kind) (value string, present bool)
}

// Driver is the single capability every provider kind implements.
type Driver interface {
	Stream(ctx context.Context, config ProviderConfig, messages []types.Message, sink Sink) error
}
