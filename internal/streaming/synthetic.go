package streaming

import (
	"context"
	"regexp"
	"time"
)

var whitespaceSplit = regexp.MustCompile(`(\s+)`)

// tickEvery is how often (in emitted pieces) synthetic replay pauses.
const tickEvery = 5

// synthPace is the per-pause sleep; a UX tuning knob, not a contract.
var synthPace = 15 * time.Millisecond

// SyntheticReplay tokenizes text on runs of whitespace (keeping the
// separators as their own pieces) and emits each piece via onToken, pausing
// briefly every fifth piece. It aborts the moment ctx is cancelled, without
// emitting the remaining pieces.
func SyntheticReplay(ctx context.Context, text string, onToken func(string)) error {
	pieces := tokenize(text)
	for i, piece := range pieces {
		if err := ctx.Err(); err != nil {
			return err
		}
		onToken(piece)
		if (i+1)%tickEvery == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(synthPace):
			}
		}
	}
	return nil
}

// tokenize splits text on /(\s+)/ while keeping the whitespace runs as
// separate pieces, matching a JS `split(/(\s+)/)`.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	locs := whitespaceSplit.FindAllStringIndex(text, -1)
	if locs == nil {
		return []string{text}
	}

	var pieces []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			pieces = append(pieces, text[prev:loc[0]])
		}
		pieces = append(pieces, text[loc[0]:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		pieces = append(pieces, text[prev:])
	}
	return pieces
}
