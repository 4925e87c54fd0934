package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lantern-intel/lantern/internal/platform/observability"
)

const usageStorageTimeout = 10 * time.Second

// UsageStore persists usage counters, typically the llm_usage table.
type UsageStore interface {
	IncrementLLMUsage(ctx context.Context, provider, model, task string, promptTokens, completionTokens int) error
}

// UsageRecorder records token usage for LLM requests.
type UsageRecorder interface {
	RecordTokenUsage(provider, model, task string, promptTokens, completionTokens int, success bool)
}

type usageRecorder struct {
	usageStore UsageStore
	logger     *zerolog.Logger
}

// NewUsageRecorder creates a UsageRecorder backed by the given store.
func NewUsageRecorder(usageStore UsageStore, logger *zerolog.Logger) UsageRecorder {
	return &usageRecorder{
		usageStore: usageStore,
		logger:     logger,
	}
}

// RecordTokenUsage records Prometheus metrics and persists usage counters.
func (r *usageRecorder) RecordTokenUsage(provider, model, task string, promptTokens, completionTokens int, success bool) {
	if promptTokens > 0 {
		observability.TranslationTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}

	if completionTokens > 0 {
		observability.TranslationTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}

	if r.usageStore == nil || !success {
		return
	}

	// Fire-and-forget: usage storage is best-effort and must not fail the
	// translation that produced it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), usageStorageTimeout)
		defer cancel()

		if err := r.usageStore.IncrementLLMUsage(ctx, provider, model, task, promptTokens, completionTokens); err != nil {
			r.logger.Warn().Err(err).Msg("failed to persist llm usage")
		}
	}()
}

type noopUsageRecorder struct{}

// NoopUsageRecorder returns a no-op implementation of UsageRecorder.
func NoopUsageRecorder() UsageRecorder {
	return &noopUsageRecorder{}
}

func (r *noopUsageRecorder) RecordTokenUsage(_, _, _ string, _, _ int, _ bool) {}
