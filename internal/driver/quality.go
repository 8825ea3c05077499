package driver

import "strings"

// Score implements §4.1.1 quality scoring: start at 70, apply length,
// formatting, and well-formedness adjustments, clamp to [0,100].
func Score(response string) int {
	score := 70
	n := len(response)

	// Each length bracket applies independently, not as a switch: a 3000
	// character response gets both the >500 and >2000 bonus.
	if n > 100 {
		score += 5
	}
	if n > 500 {
		score += 5
	}
	if n > 2000 {
		score += 5
	}
	if n > 10000 {
		score -= 5
	}

	if strings.Contains(response, "```") {
		score += 5
	}
	if strings.Contains(response, "**") {
		score += 2
	}
	if hasListBullet(response) {
		score += 2
	}
	if hasMarkdownHeader(response) {
		score += 2
	}
	if !strings.Contains(response, "undefined") && !strings.Contains(response, "NaN") {
		score += 3
	}
	if endsWellFormed(response) {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func hasListBullet(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			return true
		}
	}
	return false
}

func hasMarkdownHeader(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return true
		}
	}
	return false
}

var wellFormedEnders = []byte{'.', '!', '?', '`', '"', '\'', ')'}

func endsWellFormed(s string) bool {
	trimmed := strings.TrimRightFunc(s, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	for _, b := range wellFormedEnders {
		if last == b {
			return true
		}
	}
	return false
}
