package driver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldharbor/infergate/pkg/types"
)

type recordingSink struct {
	statuses []string
	tokens   []string
}

func (s *recordingSink) OnStatus(status string) { s.statuses = append(s.statuses, status) }
func (s *recordingSink) OnToken(token string)   { s.tokens = append(s.tokens, token) }
func (s *recordingSink) content() string        { return strings.Join(s.tokens, "") }

func TestOfflinePicksTemplateByKeyword(t *testing.T) {
	cases := map[string]string{
		"can you build a landing page for my startup": landingPageTemplate,
		"I need an admin dashboard with analytics":    dashboardTemplate,
		"write a react typescript component":          reactComponentTemplate,
		"hello there":                                 greetingTemplate,
		"something entirely unrelated":                defaultTemplate,
	}

	for userMsg, want := range cases {
		sink := &recordingSink{}
		messages := []types.Message{{Role: types.RoleUser, Content: userMsg}}
		err := Offline{}.Stream(context.Background(), ProviderConfig{}, messages, sink)
		require.NoError(t, err)
		assert.Equal(t, want, sink.content())
	}
}

func TestOfflineNeverFails(t *testing.T) {
	sink := &recordingSink{}
	err := Offline{}.Stream(context.Background(), ProviderConfig{}, nil, sink)
	assert.NoError(t, err)
	assert.NotEmpty(t, sink.content())
}
