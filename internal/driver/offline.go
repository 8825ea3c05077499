package driver

import (
	"context"
	"strings"
	"unicode"

	"github.com/coldharbor/infergate/internal/streaming"
	"github.com/coldharbor/infergate/pkg/types"
)

// Offline is the last-resort driver: it never fails and requires no
// credentials or network access. It picks a canned template by keyword
// match over the last user message, then synthetic-replays it.
type Offline struct{}

func (Offline) Stream(ctx context.Context, _ ProviderConfig, messages []types.Message, sink Sink) error {
	sink.OnStatus("Connecting to Offline…")
	template := pickTemplate(lastUserContent(messages))
	return streaming.SyntheticReplay(ctx, template, sink.OnToken)
}

func lastUserContent(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func pickTemplate(lastUser string) string {
	lower := strings.ToLower(lastUser)
	switch {
	case containsAny(lower, "landing page", "website", "homepage"):
		return landingPageTemplate
	case containsAny(lower, "dashboard", "admin", "analytics"):
		return dashboardTemplate
	case containsAny(lower, "react", "component", "typescript"):
		return reactComponentTemplate
	case containsAny(lower, "help") || containsWord(lower, "hello", "hi", "hey"):
		return greetingTemplate
	default:
		return defaultTemplate
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// containsWord reports whether any of words appears in s as a whole word.
func containsWord(s string, words ...string) bool {
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		for _, w := range words {
			if field == w {
				return true
			}
		}
	}
	return false
}

const landingPageTemplate = `# Landing Page

Here's a starting point for your landing page: a hero section with a
headline, a short subheading, and a single call-to-action button, followed
by a three-column features section and a footer.

` + "```html\n<section class=\"hero\">\n  <h1>Your Product</h1>\n  <p>A short, compelling subheading.</p>\n  <button>Get Started</button>\n</section>\n```" + `
`

const dashboardTemplate = `# Dashboard Layout

A typical admin dashboard has a left sidebar for navigation, a top bar with
the current user and notifications, and a main content area with stat
cards and a chart.

` + "```\n[Sidebar] [Top bar            ]\n[       ] [Stat][Stat][Stat]\n[       ] [        Chart        ]\n```" + `
`

const reactComponentTemplate = "```typescript\nimport { useState } from 'react'\n\nexport function Example() {\n  const [count, setCount] = useState(0)\n  return <button onClick={() => setCount(c => c + 1)}>{count}</button>\n}\n```\n"

const greetingTemplate = `Hello! I'm currently running in offline mode, but I'm still happy to help.
What would you like to work on?`

const defaultTemplate = `I'm running in offline mode right now, so this response is a generic
placeholder rather than a live completion. Let me know what you're trying
to build and I'll do my best with what's available.`
