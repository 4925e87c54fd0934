package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry errors.
var (
	ErrNoProvidersAvailable = errors.New("no embedding providers available")
	ErrAllProvidersFailed   = errors.New("all embedding providers failed")
)

const logKeyProvider = "provider"

// Registry manages embedding providers with priority-ordered fallback.
// It implements the single GetEmbedding entry point the dedup engine consumes.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *zerolog.Logger
}

// NewRegistry creates a new provider registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = append(r.providers, p)
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority() > r.providers[j].Priority()
	})

	r.logger.Info().
		Str(logKeyProvider, string(p.Name())).
		Int("priority", p.Priority()).
		Int("dimensions", p.Dimensions()).
		Msg("registered embedding provider")
}

// GetEmbedding attempts to get an embedding using available providers in
// priority order, falling through on error.
func (r *Registry) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	r.mu.RLock()
	providers := make([]Provider, 0, len(r.providers))

	for _, p := range r.providers {
		if p.IsAvailable() {
			providers = append(providers, p)
		}
	}
	r.mu.RUnlock()

	if len(providers) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	var lastErr error

	for _, p := range providers {
		result, err := p.GetEmbedding(ctx, text)
		if err != nil {
			r.logger.Warn().Err(err).
				Str(logKeyProvider, string(p.Name())).
				Msg("embedding provider failed, trying next")

			lastErr = err

			continue
		}

		return result.Vector, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// Ready reports whether at least one provider is available.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.IsAvailable() {
			return true
		}
	}

	return false
}
