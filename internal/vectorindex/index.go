// Package vectorindex defines the nearest-neighbor index the dedup engine
// queries, plus pgvector-backed and in-memory implementations.
package vectorindex

import "context"

// Metadata is the closed record stored alongside each vector. Only these
// fields are read by the query path.
type Metadata struct {
	MessageID     string
	ChannelID     string
	PublishedAtTS int64 // epoch seconds; 0 when the publish time is unknown
}

// Match is a single nearest-neighbor result. ID is the message id the
// matched vector was stored for; Score is cosine similarity on a 0-1 scale.
type Match struct {
	ID    string
	Score float32
}

// Index is an append/query-only nearest-neighbor store over text embeddings.
type Index interface {
	// Upsert stores a vector for a message and returns the index key.
	// Upserting the same message id again replaces the stored vector.
	Upsert(ctx context.Context, vector []float32, meta Metadata) (string, error)

	// Query returns up to topK matches ordered descending by score. When
	// cutoffTS > 0, only vectors with PublishedAtTS >= cutoffTS are
	// considered; vectors without a publish timestamp are excluded.
	Query(ctx context.Context, vector []float32, topK int, cutoffTS int64) ([]Match, error)

	// Ready reports whether the index is initialized and reachable.
	Ready(ctx context.Context) bool
}
