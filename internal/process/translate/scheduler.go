// Package translate schedules pending messages for translation under a
// process-wide concurrency cap, batching same-language-pair texts into
// combined provider requests.
package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/lantern-intel/lantern/internal/core/domain"
	coreerrors "github.com/lantern-intel/lantern/internal/core/errors"
	"github.com/lantern-intel/lantern/internal/core/llm"
	"github.com/lantern-intel/lantern/internal/platform/observability"
)

const (
	defaultBatchSize = 20
	defaultTimeout   = 60 * time.Second

	eventMessageTranslated = "message_translated"
)

// Repository is the persistence surface the scheduler needs. Pending
// messages arrive ordered by (channel, priority) with high drained before
// normal before low; skip-tier messages are never returned.
type Repository interface {
	ClaimPendingTranslations(ctx context.Context, limit int) ([]domain.Message, error)
	SaveTranslation(ctx context.Context, messageID, translatedText string, translatedAt time.Time) error
	ReleaseStuckTranslations(ctx context.Context, stuckAfter time.Duration) (int64, error)
	CountPendingTranslations(ctx context.Context) (map[domain.Priority]int, error)
}

// Cache is the persisted translation cache keyed by (message id, language).
type Cache interface {
	GetTranslation(ctx context.Context, messageID, lang string) (string, error)
	PutTranslation(ctx context.Context, messageID, lang, text string, tokenCount int) error
}

// Notifier publishes best-effort events. Failures must not propagate into
// the translation path.
type Notifier interface {
	Publish(ctx context.Context, eventType string, payload map[string]string)
}

// Scheduler drains the translation backlog. One instance per process; the
// semaphore it holds is the single shared backpressure mechanism for every
// translation call in the process.
type Scheduler struct {
	repo      Repository
	client    llm.Client
	cache     Cache
	notifier  Notifier
	usage     llm.UsageRecorder
	sem       *semaphore.Weighted
	batchSize int
	timeout   time.Duration
	logger    *zerolog.Logger
}

// Config tunes the scheduler. Zero values fall back to defaults.
type Config struct {
	BatchSize int
	Timeout   time.Duration
}

// New creates a scheduler sharing the given semaphore. The semaphore must be
// created once per process and passed to every call site that translates.
func New(
	repo Repository,
	client llm.Client,
	cache Cache,
	notifier Notifier,
	usage llm.UsageRecorder,
	sem *semaphore.Weighted,
	cfg Config,
	logger *zerolog.Logger,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Scheduler{
		repo:      repo,
		client:    client,
		cache:     cache,
		notifier:  notifier,
		usage:     usage,
		sem:       sem,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// langGroup collects same-language-pair messages for one combined request.
type langGroup struct {
	sourceLang string
	targetLang string
	messages   []domain.Message
}

// ProcessPending claims and translates one batch of pending messages.
// Per-group provider failures are collected and returned so the job-level
// retry wrapper can engage; per-message persistence failures are logged and
// skipped so one bad message does not sink the batch.
func (s *Scheduler) ProcessPending(ctx context.Context) error {
	if !s.client.IsAvailable() {
		return fmt.Errorf("translation client %s: %w", s.client.Name(), coreerrors.ErrProviderUnavailable)
	}

	messages, err := s.repo.ClaimPendingTranslations(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("claim pending translations: %w", err)
	}

	if len(messages) == 0 {
		return nil
	}

	s.logger.Info().Int("count", len(messages)).Msg("processing translation batch")

	var errs []error

	for _, group := range groupByLanguagePair(messages) {
		if err := s.translateGroup(ctx, group); err != nil {
			s.logger.Error().Err(err).
				Str("source_lang", group.sourceLang).
				Str("target_lang", group.targetLang).
				Int("messages", len(group.messages)).
				Msg("translation group failed")

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// groupByLanguagePair partitions messages by (source, target) language,
// preserving the repository's priority ordering within each group.
func groupByLanguagePair(messages []domain.Message) []langGroup {
	index := make(map[string]int)

	var groups []langGroup

	for _, m := range messages {
		key := m.SourceLanguage + "\x00" + m.TargetLanguage

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i

			groups = append(groups, langGroup{sourceLang: m.SourceLanguage, targetLang: m.TargetLanguage})
		}

		groups[i].messages = append(groups[i].messages, m)
	}

	return groups
}

// translateGroup resolves cache hits, sends the remainder as one combined
// request, and falls back to per-message calls on a segment-count mismatch.
func (s *Scheduler) translateGroup(ctx context.Context, group langGroup) error {
	pending := make([]domain.Message, 0, len(group.messages))

	for _, msg := range group.messages {
		cached, err := s.cache.GetTranslation(ctx, msg.ID, group.targetLang)
		if err == nil {
			observability.TranslationCacheLookups.WithLabelValues(observability.CacheHit).Inc()
			s.finalize(ctx, msg, cached, 0, false)

			continue
		}

		if !errors.Is(err, coreerrors.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("translation cache lookup failed")
		}

		observability.TranslationCacheLookups.WithLabelValues(observability.CacheMiss).Inc()

		pending = append(pending, msg)
	}

	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, msg := range pending {
		texts[i] = msg.OriginalText
	}

	combined, usage, err := s.translateCombined(ctx, texts, group.sourceLang, group.targetLang)
	if err != nil {
		return err
	}

	segments := llm.SplitSegments(combined)
	if len(segments) != len(pending) {
		// Provider violated the batching contract. Never misalign outputs:
		// retranslate each message individually and sequentially.
		observability.TranslationBatchFallbacks.Inc()
		s.logger.Warn().
			Int("expected", len(pending)).
			Int("got", len(segments)).
			Msg("batch translation segment mismatch, falling back to per-message calls")

		return s.translateSequentially(ctx, pending, group.sourceLang, group.targetLang)
	}

	tokensPerMessage := perMessageTokens(usage, len(pending))

	for i, msg := range pending {
		s.finalize(ctx, msg, segments[i], tokensPerMessage, true)
	}

	return nil
}

// translateSequentially is the mismatch fallback path: one provider call per
// message, in order. A single failed message is dead-ended with an error so
// the remaining messages still get their translations.
func (s *Scheduler) translateSequentially(ctx context.Context, messages []domain.Message, sourceLang, targetLang string) error {
	var errs []error

	for _, msg := range messages {
		translated, usage, err := s.translateOne(ctx, msg.OriginalText, sourceLang, targetLang)
		if err != nil {
			errs = append(errs, fmt.Errorf("message %s: %w", msg.ID, err))

			continue
		}

		s.finalize(ctx, msg, translated, usage.PromptTokens+usage.CompletionTokens, true)
	}

	return errors.Join(errs...)
}

// translateCombined performs one semaphore-guarded batch provider call.
func (s *Scheduler) translateCombined(ctx context.Context, texts []string, sourceLang, targetLang string) (string, llm.Usage, error) {
	if err := s.acquire(ctx); err != nil {
		return "", llm.Usage{}, err
	}
	defer s.release()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	combined, usage, err := s.client.TranslateBatch(callCtx, texts, sourceLang, targetLang)

	s.usage.RecordTokenUsage(s.client.Name(), s.client.Model(), llm.TaskTranslation,
		usage.PromptTokens, usage.CompletionTokens, err == nil)

	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("translate batch: %w", err)
	}

	return combined, usage, nil
}

// translateOne performs one semaphore-guarded single-text provider call.
func (s *Scheduler) translateOne(ctx context.Context, text, sourceLang, targetLang string) (string, llm.Usage, error) {
	if err := s.acquire(ctx); err != nil {
		return "", llm.Usage{}, err
	}
	defer s.release()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	translated, usage, err := s.client.TranslateOne(callCtx, text, sourceLang, targetLang)

	s.usage.RecordTokenUsage(s.client.Name(), s.client.Model(), llm.TaskTranslation,
		usage.PromptTokens, usage.CompletionTokens, err == nil)

	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("translate one: %w", err)
	}

	return translated, usage, nil
}

func (s *Scheduler) acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire translation permit: %w", err)
	}

	observability.TranslationInFlight.Inc()

	return nil
}

func (s *Scheduler) release() {
	observability.TranslationInFlight.Dec()
	s.sem.Release(1)
}

// finalize persists a successful translation, populates the cache, and
// publishes the best-effort notification event.
func (s *Scheduler) finalize(ctx context.Context, msg domain.Message, translated string, tokenCount int, populateCache bool) {
	translatedAt := time.Now().UTC()

	if err := s.repo.SaveTranslation(ctx, msg.ID, translated, translatedAt); err != nil {
		s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to save translation")

		return
	}

	if populateCache {
		if err := s.cache.PutTranslation(ctx, msg.ID, msg.TargetLanguage, translated, tokenCount); err != nil {
			s.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to populate translation cache")
		}
	}

	s.notifier.Publish(ctx, eventMessageTranslated, map[string]string{
		"message_id": msg.ID,
		"channel_id": msg.ChannelID,
		"priority":   string(msg.TranslationPriority),
	})
}

// ReleaseStuck returns claimed-but-unfinished messages to the pending pool.
// Run periodically; covers workers that crashed mid-batch.
func (s *Scheduler) ReleaseStuck(ctx context.Context, stuckAfter time.Duration) {
	released, err := s.repo.ReleaseStuckTranslations(ctx, stuckAfter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to release stuck translations")

		return
	}

	if released > 0 {
		s.logger.Info().Int64("released", released).Msg("released stuck translation claims")
	}
}

// ReportBacklog refreshes the per-priority backlog gauges.
func (s *Scheduler) ReportBacklog(ctx context.Context) {
	counts, err := s.repo.CountPendingTranslations(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to count translation backlog")

		return
	}

	for _, p := range []domain.Priority{domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow} {
		observability.TranslationBacklog.WithLabelValues(string(p)).Set(float64(counts[p]))
	}
}

// perMessageTokens apportions a batch call's token usage evenly across the
// messages it covered, for cache accounting.
func perMessageTokens(usage llm.Usage, count int) int {
	if count <= 0 {
		return 0
	}

	return (usage.PromptTokens + usage.CompletionTokens) / count
}
