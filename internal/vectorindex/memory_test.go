package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{name: "identical vectors", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, expected: 1.0},
		{name: "orthogonal vectors", a: []float32{1, 0, 0}, b: []float32{0, 1, 0}, expected: 0.0},
		{name: "opposite vectors", a: []float32{1, 0, 0}, b: []float32{-1, 0, 0}, expected: -1.0},
		{name: "different lengths", a: []float32{1, 0, 0}, b: []float32{1, 0}, expected: 0.0},
		{name: "empty vectors", a: []float32{}, b: []float32{}, expected: 0.0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestMemoryUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	keyA, err := idx.Upsert(ctx, []float32{1, 0, 0}, Metadata{MessageID: "a", ChannelID: "ch1", PublishedAtTS: 100})
	require.NoError(t, err)
	require.NotEmpty(t, keyA)

	_, err = idx.Upsert(ctx, []float32{0, 1, 0}, Metadata{MessageID: "b", ChannelID: "ch1", PublishedAtTS: 200})
	require.NoError(t, err)

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 5, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)
	assert.Equal(t, "b", matches[1].ID)
}

func TestMemoryUpsertStableKey(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	key1, err := idx.Upsert(ctx, []float32{1, 0}, Metadata{MessageID: "a"})
	require.NoError(t, err)

	key2, err := idx.Upsert(ctx, []float32{0, 1}, Metadata{MessageID: "a"})
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
}

func TestMemoryQueryCutoff(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	_, err := idx.Upsert(ctx, []float32{1, 0}, Metadata{MessageID: "old", PublishedAtTS: 50})
	require.NoError(t, err)

	_, err = idx.Upsert(ctx, []float32{1, 0}, Metadata{MessageID: "recent", PublishedAtTS: 500})
	require.NoError(t, err)

	_, err = idx.Upsert(ctx, []float32{1, 0}, Metadata{MessageID: "undated"})
	require.NoError(t, err)

	matches, err := idx.Query(ctx, []float32{1, 0}, 5, 100)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "recent", matches[0].ID)

	// No cutoff returns everything, undated included.
	matches, err = idx.Query(ctx, []float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestMemoryQueryTopK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := idx.Upsert(ctx, []float32{1, 0}, Metadata{MessageID: id})
		require.NoError(t, err)
	}

	matches, err := idx.Query(ctx, []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestMemoryReadiness(t *testing.T) {
	idx := NewMemory()
	assert.True(t, idx.Ready(context.Background()))

	idx.SetReady(false)
	assert.False(t, idx.Ready(context.Background()))
}
