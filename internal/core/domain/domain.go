// Package domain holds the core entity types shared across the ingestion,
// deduplication, and translation subsystems.
package domain

import "time"

// Priority is a translation priority tier assigned by the classifier.
type Priority string

// Priority tiers, ordered high > normal > low. Skip is never scheduled.
const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
	PrioritySkip   Priority = "skip"
)

// Rank returns the scheduling rank for a priority (lower drains first).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow, PrioritySkip:
		return true
	}

	return false
}

// Message is a unit of ingested channel content.
//
// Dedup fields (IsDuplicate, DuplicateGroupID, OriginalityScore, EmbeddingID)
// are owned by the dedup engine; translation fields (TranslatedText,
// NeedsTranslation, TranslatedAt) are owned by the translation scheduler.
type Message struct {
	ID                  string
	ChannelID           string
	OriginalText        string
	TranslatedText      string
	SourceLanguage      string
	TargetLanguage      string
	NeedsTranslation    bool
	TranslationPriority Priority
	IsDuplicate         bool
	DuplicateGroupID    string
	OriginalityScore    int
	EmbeddingID         string
	PublishedAt         time.Time
	FetchedAt           time.Time
	TranslatedAt        time.Time
}

// EffectiveTimestamp returns the timestamp used for dedup ordering:
// PublishedAt when known, FetchedAt otherwise.
func (m *Message) EffectiveTimestamp() time.Time {
	if !m.PublishedAt.IsZero() {
		return m.PublishedAt
	}

	return m.FetchedAt
}

// Text returns the text used for embedding: the translation when present,
// the original otherwise.
func (m *Message) Text() string {
	if m.TranslatedText != "" {
		return m.TranslatedText
	}

	return m.OriginalText
}

// IsGroupAnchor reports whether the message is the canonical first member of
// its duplicate group.
func (m *Message) IsGroupAnchor() bool {
	return m.DuplicateGroupID != "" && m.DuplicateGroupID == m.ID
}

// Channel is an originating source of messages.
type Channel struct {
	ID             string
	Title          string
	SourceLanguage string
	TargetLanguage string
	CreatedAt      time.Time
}

// DeadLetter records a background job that exhausted its retry budget.
// Entries are written once by the job retry wrapper and never mutated.
type DeadLetter struct {
	ID         string
	JobName    string
	Error      string
	StackTrace string
	Attempts   int
	CreatedAt  time.Time
}
