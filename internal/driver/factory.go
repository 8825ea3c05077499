package driver

import (
	"fmt"
	"net/http"
)

// Dependencies are the shared collaborators every driver construction may
// need; not every Kind uses every field.
type Dependencies struct {
	HTTPClient  *http.Client
	Credentials CredentialProvider
}

// New resolves kind to a concrete Driver once, at Router construction.
func New(kind Kind, deps Dependencies) (Driver, error) {
	switch kind {
	case KindLocalChat:
		return LocalChat{HTTPClient: deps.HTTPClient}, nil
	case KindOpenAIChat:
		return OpenAIChat{HTTPClient: deps.HTTPClient, Credentials: deps.Credentials}, nil
	case KindOpenAIChatFree:
		return OpenAIChatFree{HTTPClient: deps.HTTPClient}, nil
	case KindSimpleTextGet:
		return SimpleTextGet{HTTPClient: deps.HTTPClient}, nil
	case KindInstructModel:
		return InstructModel{HTTPClient: deps.HTTPClient}, nil
	case KindOffline:
		return Offline{}, nil
	default:
		return nil, fmt.Errorf("driver: unknown provider kind %q", kind)
	}
}
