package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	key    string
	vector []float32
	meta   Metadata
}

// Memory is an in-process Index used by tests and index-free deployments.
// Scores are cosine similarity clamped to [0, 1].
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry // keyed by message id
	ready   bool
}

// NewMemory creates a ready in-memory index.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ready:   true,
	}
}

// SetReady toggles readiness, letting tests exercise the fail-open path.
func (m *Memory) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ready = ready
}

func (m *Memory) Upsert(_ context.Context, vector []float32, meta Metadata) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[meta.MessageID]
	if !ok {
		entry = memoryEntry{key: uuid.New().String()}
	}

	entry.vector = append([]float32(nil), vector...)
	entry.meta = meta
	m.entries[meta.MessageID] = entry

	return entry.key, nil
}

func (m *Memory) Query(_ context.Context, vector []float32, topK int, cutoffTS int64) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.entries))

	for id, entry := range m.entries {
		if cutoffTS > 0 && (entry.meta.PublishedAtTS == 0 || entry.meta.PublishedAtTS < cutoffTS) {
			continue
		}

		score := CosineSimilarity(vector, entry.vector)
		if score < 0 {
			score = 0
		}

		matches = append(matches, Match{ID: id, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

func (m *Memory) Ready(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ready
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
