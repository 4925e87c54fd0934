package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSegmentsRoundTrip(t *testing.T) {
	texts := []string{"hola", "adios", "buenos dias"}

	combined := JoinSegments(texts)
	segments := SplitSegments(combined)

	assert.Equal(t, texts, segments)
}

func TestSplitSegmentsPreservesOrder(t *testing.T) {
	combined := "hello" + Separator + "bye"

	segments := SplitSegments(combined)
	require.Len(t, segments, 2)
	assert.Equal(t, "hello", segments[0])
	assert.Equal(t, "bye", segments[1])
}

func TestSplitSegmentsToleratesWhitespaceAroundSeparator(t *testing.T) {
	// Providers sometimes drop or double the newlines around the token.
	combined := "hello<<<SEG>>>bye\n<<<SEG>>>\n\nlater"

	segments := SplitSegments(combined)
	require.Len(t, segments, 3)
	assert.Equal(t, []string{"hello", "bye", "later"}, segments)
}

func TestJoinSegmentsStripsStraySeparators(t *testing.T) {
	texts := []string{"a<<<SEG>>>b", "c"}

	combined := JoinSegments(texts)
	segments := SplitSegments(combined)

	require.Len(t, segments, 2)
	assert.Equal(t, "ab", segments[0])
	assert.Equal(t, "c", segments[1])
}

func TestSplitSegmentsSingle(t *testing.T) {
	segments := SplitSegments("  only one  ")
	require.Len(t, segments, 1)
	assert.Equal(t, "only one", segments[0])
}

func TestMockClientBatch(t *testing.T) {
	client := NewMock()

	combined, usage, err := client.TranslateBatch(context.Background(), []string{"hola", "adios"}, "es", "en")
	require.NoError(t, err)
	assert.Equal(t, 2, usage.PromptTokens)

	segments := SplitSegments(combined)
	require.Len(t, segments, 2)
	assert.Equal(t, "en:hola", segments[0])
	assert.Equal(t, "en:adios", segments[1])
}
