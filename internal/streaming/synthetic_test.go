package streaming

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticReplayReconstructsOriginalText(t *testing.T) {
	text := "hello   world, this is   a test"
	var out strings.Builder
	err := SyntheticReplay(context.Background(), text, func(piece string) {
		out.WriteString(piece)
	})
	require.NoError(t, err)
	assert.Equal(t, text, out.String())
}

func TestSyntheticReplayAbortsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var pieces []string
	err := SyntheticReplay(ctx, "a b c d e f g h", func(piece string) {
		pieces = append(pieces, piece)
	})
	assert.Error(t, err)
}
