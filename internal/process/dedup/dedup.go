// Package dedup assigns duplicate status and group ids to batches of
// messages using vector similarity against a sliding recency window.
package dedup

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lantern-intel/lantern/internal/core/domain"
	"github.com/lantern-intel/lantern/internal/platform/observability"
	"github.com/lantern-intel/lantern/internal/vectorindex"
)

const (
	defaultTopK      = 5
	defaultThreshold = 0.85

	maxOriginality = 100
)

// Metric status labels.
const (
	statusUnique    = "unique"
	statusDuplicate = "duplicate"
	statusSkipped   = "skipped_empty"
	statusError     = "error"
)

// EmbeddingProvider maps text to a fixed-dimension vector.
type EmbeddingProvider interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Engine orchestrates embedding generation, similarity queries, and
// duplicate-group assignment for batches of messages.
type Engine struct {
	index     vectorindex.Index
	embedder  EmbeddingProvider
	topK      int
	threshold float32
	logger    *zerolog.Logger
}

// New creates a dedup engine. topK and threshold fall back to defaults when
// not positive.
func New(index vectorindex.Index, embedder EmbeddingProvider, topK int, threshold float32, logger *zerolog.Logger) *Engine {
	if topK <= 0 {
		topK = defaultTopK
	}

	if threshold <= 0 {
		threshold = defaultThreshold
	}

	return &Engine{
		index:     index,
		embedder:  embedder,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// DeduplicateBatch mutates the dedup fields of every message in the batch and
// returns it. The boolean reports whether dedup was applied: when the vector
// index is not ready the batch is returned unchanged (fail-open, messages
// default to non-duplicate).
//
// Messages are processed oldest-first so the earliest member of a duplicate
// set becomes the group anchor regardless of input ordering. A non-zero
// cutoff bounds the similarity search to vectors published at or after it.
func (e *Engine) DeduplicateBatch(ctx context.Context, batch []*domain.Message, cutoff time.Time) ([]*domain.Message, bool) {
	if !e.index.Ready(ctx) {
		e.logger.Warn().Msg("vector index not ready, skipping dedup pass")

		return batch, false
	}

	start := time.Now()

	// Oldest first. Stable so equal timestamps keep their input order.
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].EffectiveTimestamp().Before(batch[j].EffectiveTimestamp())
	})

	byID := make(map[string]*domain.Message, len(batch))
	for _, m := range batch {
		byID[m.ID] = m
	}

	var cutoffTS int64
	if !cutoff.IsZero() {
		cutoffTS = cutoff.Unix()
	}

	for _, msg := range batch {
		e.processMessage(ctx, msg, byID, cutoffTS)
	}

	observability.DedupBatchDurationSeconds.Observe(time.Since(start).Seconds())

	return batch, true
}

// processMessage runs the similarity lookup for a single message. Errors on
// the embedding or index calls are logged and leave the message's dedup
// fields untouched so one bad message does not sink the batch.
func (e *Engine) processMessage(ctx context.Context, msg *domain.Message, byID map[string]*domain.Message, cutoffTS int64) {
	text := msg.Text()
	if strings.TrimSpace(text) == "" {
		observability.MessagesDeduplicated.WithLabelValues(statusSkipped).Inc()

		return
	}

	vector, err := e.embedder.GetEmbedding(ctx, text)
	if err != nil {
		e.logger.Error().Err(err).Str("message_id", msg.ID).Msg("embedding failed, leaving dedup fields untouched")
		observability.MessagesDeduplicated.WithLabelValues(statusError).Inc()

		return
	}

	if msg.EmbeddingID == "" {
		key, err := e.index.Upsert(ctx, vector, vectorindex.Metadata{
			MessageID:     msg.ID,
			ChannelID:     msg.ChannelID,
			PublishedAtTS: publishedAtTS(msg),
		})
		if err != nil {
			e.logger.Error().Err(err).Str("message_id", msg.ID).Msg("embedding upsert failed")
			observability.MessagesDeduplicated.WithLabelValues(statusError).Inc()

			return
		}

		msg.EmbeddingID = key
	}

	matches, err := e.index.Query(ctx, vector, e.topK, cutoffTS)
	if err != nil {
		e.logger.Error().Err(err).Str("message_id", msg.ID).Msg("similarity query failed")
		observability.MessagesDeduplicated.WithLabelValues(statusError).Inc()

		return
	}

	best, found := e.bestCandidate(msg.ID, matches)
	if !found {
		msg.IsDuplicate = false
		msg.DuplicateGroupID = ""
		msg.OriginalityScore = maxOriginality

		observability.MessagesDeduplicated.WithLabelValues(statusUnique).Inc()
		observability.DedupOriginalityScore.Observe(maxOriginality)

		return
	}

	groupID := e.resolveGroupID(best.ID, byID)
	if groupID == msg.ID {
		// Matched a member of our own group on a repeat pass. The anchor
		// keeps its status; flipping it to duplicate would break the
		// group-id-equals-own-id invariant.
		msg.IsDuplicate = false
		msg.DuplicateGroupID = msg.ID
		msg.OriginalityScore = maxOriginality

		observability.MessagesDeduplicated.WithLabelValues(statusUnique).Inc()

		return
	}

	msg.IsDuplicate = true
	msg.DuplicateGroupID = groupID
	msg.OriginalityScore = originalityScore(best.Score)

	observability.MessagesDeduplicated.WithLabelValues(statusDuplicate).Inc()
	observability.DedupOriginalityScore.Observe(float64(msg.OriginalityScore))
}

// bestCandidate picks the highest-scoring non-self match that meets the
// threshold. Matches arrive ordered descending by score, so the first
// qualifying entry wins; ties resolve to the earlier list position.
func (e *Engine) bestCandidate(selfID string, matches []vectorindex.Match) (vectorindex.Match, bool) {
	for _, m := range matches {
		if m.ID == selfID {
			continue
		}

		if m.Score >= e.threshold {
			return m, true
		}
	}

	return vectorindex.Match{}, false
}

// resolveGroupID maps a matched message id to the duplicate group id the
// current message should adopt, promoting a groupless batch member to anchor
// when needed.
func (e *Engine) resolveGroupID(matchedID string, byID map[string]*domain.Message) string {
	matched, known := byID[matchedID]
	if !known {
		// Matched a vector persisted by a prior run. Best effort: treat its
		// id as the group id when it parses, otherwise mint a fresh group.
		if _, err := uuid.Parse(matchedID); err == nil {
			return matchedID
		}

		return uuid.New().String()
	}

	if matched.DuplicateGroupID != "" {
		return matched.DuplicateGroupID
	}

	// Promote the matched message to group anchor.
	matched.DuplicateGroupID = matched.ID
	matched.IsDuplicate = false
	matched.OriginalityScore = maxOriginality

	return matched.ID
}

// originalityScore converts a best-match similarity into the 0-100 inverse
// measure: round((1 - score) * 100), clamped.
func originalityScore(score float32) int {
	value := int(math.Round(float64(1-score) * maxOriginality))

	if value < 0 {
		return 0
	}

	if value > maxOriginality {
		return maxOriginality
	}

	return value
}

func publishedAtTS(msg *domain.Message) int64 {
	if msg.PublishedAt.IsZero() {
		return 0
	}

	return msg.PublishedAt.Unix()
}
