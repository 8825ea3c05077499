package infergate

import "github.com/coldharbor/infergate/pkg/types"

// Callbacks is the sink a caller supplies to Chat. Exactly one of
// OnComplete/OnError is invoked per call, unless the caller cancels, in
// which case OnComplete is invoked with a nil result. OnStatus and
// OnProviderSwitch are optional and may be nil.
type Callbacks struct {
	OnToken          func(token string)
	OnStatus         func(status string)
	OnProviderSwitch func(from, to string)
	OnComplete       func(result *types.CompletionResult)
	OnError          func(err error)
}

func (c Callbacks) status(s string) {
	if c.OnStatus != nil {
		c.OnStatus(s)
	}
}

func (c Callbacks) providerSwitch(from, to string) {
	if c.OnProviderSwitch != nil {
		c.OnProviderSwitch(from, to)
	}
}

func (c Callbacks) complete(result *types.CompletionResult) {
	if c.OnComplete != nil {
		c.OnComplete(result)
	}
}

func (c Callbacks) error(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}
