package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lantern-intel/lantern/internal/platform/observability"
)

// OpenAI model constants.
const (
	ModelTextEmbedding3Large = "text-embedding-3-large"
	ModelTextEmbedding3Small = "text-embedding-3-small"

	openaiRateLimiterBurst = 5

	// Maximum dimensions for text-embedding-3-large.
	maxLargeDimensions = 3072
)

// ErrOpenAIEmptyResponse indicates the API returned no embedding data.
var ErrOpenAIEmptyResponse = errors.New("empty embedding response from OpenAI")

// OpenAIProvider implements the embedding Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dimensions  int
	rateLimiter *rate.Limiter
	available   bool
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string // "text-embedding-3-large" or "text-embedding-3-small"
	Dimensions int
	RateLimit  int // Requests per second
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = ModelTextEmbedding3Small
	}

	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &OpenAIProvider{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), openaiRateLimiterBurst),
		available:   cfg.APIKey != "",
	}
}

func (p *OpenAIProvider) Name() ProviderName {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Priority() int {
	return PriorityPrimary
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable returns true if the provider is configured with an API key.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.available
}

// GetEmbedding generates an embedding for the given text using the OpenAI API.
func (p *OpenAIProvider) GetEmbedding(ctx context.Context, text string) (EmbeddingResult, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return EmbeddingResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	}

	// text-embedding-3-large supports dimension reduction via API parameter.
	if p.model == ModelTextEmbedding3Large && p.dimensions > 0 && p.dimensions < maxLargeDimensions {
		req.Dimensions = p.dimensions
	}

	start := time.Now()

	resp, err := p.client.CreateEmbeddings(ctx, req)

	observability.EmbeddingLatency.WithLabelValues(string(ProviderOpenAI), p.model).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.EmbeddingRequests.WithLabelValues(string(ProviderOpenAI), p.model, observability.StatusError).Inc()

		return EmbeddingResult{}, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) == 0 {
		observability.EmbeddingRequests.WithLabelValues(string(ProviderOpenAI), p.model, observability.StatusError).Inc()

		return EmbeddingResult{}, ErrOpenAIEmptyResponse
	}

	observability.EmbeddingRequests.WithLabelValues(string(ProviderOpenAI), p.model, observability.StatusSuccess).Inc()

	return EmbeddingResult{
		Vector:     resp.Data[0].Embedding,
		Dimensions: len(resp.Data[0].Embedding),
		Provider:   ProviderOpenAI,
	}, nil
}
