package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	coreerrors "github.com/lantern-intel/lantern/internal/core/errors"
	"github.com/lantern-intel/lantern/internal/platform/observability"
)

const (
	providerOpenAI = "openai"

	rateLimiterBurst = 5

	batchPromptTemplate = "Translate each of the following segments from %s to %s. " +
		"Segments are separated by the token %q. Return the translations in the same " +
		"order, separated by the same token, with no commentary."

	singlePromptTemplate = "Translate the following text from %s to %s. " +
		"Return only the translated text."

	languageAuto = "the source language (detect it)"
)

type openaiClient struct {
	client      *openai.Client
	model       string
	rateLimiter *rate.Limiter
	available   bool
}

// OpenAIConfig holds configuration for the OpenAI translation client.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	RateLimit int // Requests per second
}

// NewOpenAI creates an OpenAI-backed translation client.
func NewOpenAI(cfg OpenAIConfig) Client {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &openaiClient{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), rateLimiterBurst),
		available:   cfg.APIKey != "",
	}
}

func (c *openaiClient) Name() string {
	return providerOpenAI
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) IsAvailable() bool {
	return c.available
}

func (c *openaiClient) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) (string, Usage, error) {
	prompt := fmt.Sprintf(batchPromptTemplate, langOrAuto(sourceLang), targetLang, strings.TrimSpace(Separator))

	return c.complete(ctx, prompt, JoinSegments(texts))
}

func (c *openaiClient) TranslateOne(ctx context.Context, text, sourceLang, targetLang string) (string, Usage, error) {
	prompt := fmt.Sprintf(singlePromptTemplate, langOrAuto(sourceLang), targetLang)

	return c.complete(ctx, prompt, text)
}

func (c *openaiClient) complete(ctx context.Context, systemPrompt, userContent string) (string, Usage, error) {
	if !c.available {
		return "", Usage{}, fmt.Errorf("openai translation client: %w", coreerrors.ErrProviderUnavailable)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", Usage{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	})
	if err != nil {
		observability.TranslationRequests.WithLabelValues(providerOpenAI, c.model, observability.StatusError).Inc()

		return "", Usage{}, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		observability.TranslationRequests.WithLabelValues(providerOpenAI, c.model, observability.StatusError).Inc()

		return "", Usage{}, fmt.Errorf("openai chat completion: %w", coreerrors.ErrEmptyResponse)
	}

	observability.TranslationRequests.WithLabelValues(providerOpenAI, c.model, observability.StatusSuccess).Inc()

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), usage, nil
}

func langOrAuto(lang string) string {
	if lang == "" {
		return languageAuto
	}

	return lang
}
