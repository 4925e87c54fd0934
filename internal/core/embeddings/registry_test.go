package embeddings

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name      ProviderName
	priority  int
	available bool
	vector    []float32
	err       error
	calls     int
}

func (s *stubProvider) Name() ProviderName { return s.name }
func (s *stubProvider) Priority() int      { return s.priority }
func (s *stubProvider) IsAvailable() bool  { return s.available }
func (s *stubProvider) Dimensions() int    { return len(s.vector) }

func (s *stubProvider) GetEmbedding(_ context.Context, _ string) (EmbeddingResult, error) {
	s.calls++

	if s.err != nil {
		return EmbeddingResult{}, s.err
	}

	return EmbeddingResult{Vector: s.vector, Dimensions: len(s.vector), Provider: s.name}, nil
}

func newTestRegistry() *Registry {
	logger := zerolog.Nop()

	return NewRegistry(&logger)
}

func TestRegistryPrefersHigherPriorityProvider(t *testing.T) {
	primary := &stubProvider{name: "primary", priority: PriorityPrimary, available: true, vector: []float32{1, 0}}
	fallback := &stubProvider{name: "fallback", priority: PriorityMock, available: true, vector: []float32{0, 1}}

	r := newTestRegistry()
	r.Register(fallback)
	r.Register(primary)

	vec, err := r.GetEmbedding(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestRegistryFallsThroughOnError(t *testing.T) {
	primary := &stubProvider{name: "primary", priority: PriorityPrimary, available: true, err: errors.New("quota exceeded")}
	fallback := &stubProvider{name: "fallback", priority: PriorityMock, available: true, vector: []float32{0, 1}}

	r := newTestRegistry()
	r.Register(primary)
	r.Register(fallback)

	vec, err := r.GetEmbedding(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
}

func TestRegistrySkipsUnavailableProviders(t *testing.T) {
	primary := &stubProvider{name: "primary", priority: PriorityPrimary, available: false, vector: []float32{1, 0}}
	fallback := &stubProvider{name: "fallback", priority: PriorityMock, available: true, vector: []float32{0, 1}}

	r := newTestRegistry()
	r.Register(primary)
	r.Register(fallback)

	vec, err := r.GetEmbedding(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
	assert.Equal(t, 0, primary.calls)
}

func TestRegistryNoProvidersAvailable(t *testing.T) {
	r := newTestRegistry()
	r.Register(&stubProvider{name: "offline", available: false})

	_, err := r.GetEmbedding(context.Background(), "text")
	assert.ErrorIs(t, err, ErrNoProvidersAvailable)
	assert.False(t, r.Ready())
}

func TestRegistryAllProvidersFailed(t *testing.T) {
	cause := errors.New("timeout")

	r := newTestRegistry()
	r.Register(&stubProvider{name: "flaky", priority: PriorityPrimary, available: true, err: cause})

	_, err := r.GetEmbedding(context.Background(), "text")
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, cause)
}

func TestMockProviderIsDeterministic(t *testing.T) {
	p := NewMockProviderWithDimensions(64)

	first, err := p.GetEmbedding(context.Background(), "breaking news")
	require.NoError(t, err)

	second, err := p.GetEmbedding(context.Background(), "breaking news")
	require.NoError(t, err)

	assert.Equal(t, first.Vector, second.Vector)
	assert.Len(t, first.Vector, 64)

	other, err := p.GetEmbedding(context.Background(), "different text")
	require.NoError(t, err)
	assert.NotEqual(t, first.Vector, other.Vector)
}

func TestMockProviderProducesUnitVectors(t *testing.T) {
	p := NewMockProvider()

	result, err := p.GetEmbedding(context.Background(), "some text")
	require.NoError(t, err)

	var sum float64
	for _, v := range result.Vector {
		sum += float64(v) * float64(v)
	}

	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-3)
}
