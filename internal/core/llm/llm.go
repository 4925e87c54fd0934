// Package llm wraps the LLM provider used as the translation capability.
// Provider-specific prompt and response framing stays behind the Client
// interface; callers see only translate-batch and translate-one operations.
package llm

import (
	"context"
	"strings"
)

// Separator is the reserved token between segments in a batched translation
// request and response. It cannot plausibly appear in channel text; inputs
// are stripped of it before batching as a defense.
const Separator = "\n<<<SEG>>>\n"

// Task label for the usage ledger.
const TaskTranslation = "translation"

// Usage carries token counts for a single provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client is the translation capability consumed by the scheduler.
type Client interface {
	// Name returns the provider identifier for metrics and the usage ledger.
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// IsAvailable reports whether the client is configured. Callers must
	// fail fast on unavailable clients rather than hang.
	IsAvailable() bool

	// TranslateBatch translates texts joined by Separator in one request and
	// returns the provider's combined response. The caller splits it back
	// and handles segment-count mismatches.
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) (string, Usage, error)

	// TranslateOne translates a single text.
	TranslateOne(ctx context.Context, text, sourceLang, targetLang string) (string, Usage, error)
}

// JoinSegments combines texts into one batched input, stripping any stray
// separator occurrences from the inputs first.
func JoinSegments(texts []string) string {
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = strings.ReplaceAll(t, strings.TrimSpace(Separator), "")
	}

	return strings.Join(cleaned, Separator)
}

// SplitSegments splits a combined translation response back into per-message
// outputs, trimming surrounding whitespace from each segment.
func SplitSegments(combined string) []string {
	parts := strings.Split(combined, strings.TrimSpace(Separator))

	segments := make([]string, len(parts))
	for i, p := range parts {
		segments[i] = strings.TrimSpace(p)
	}

	return segments
}
