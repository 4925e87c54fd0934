package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
)

const readyProbeTimeout = 2 * time.Second

// PGVector is an Index backed by the embeddings table and the pgvector
// extension's cosine distance operator.
type PGVector struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// NewPGVector creates a pgvector-backed index over the given pool.
func NewPGVector(pool *pgxpool.Pool, logger *zerolog.Logger) *PGVector {
	return &PGVector{
		pool:   pool,
		logger: logger,
	}
}

func (p *PGVector) Upsert(ctx context.Context, vector []float32, meta Metadata) (string, error) {
	var publishedAtTS *int64
	if meta.PublishedAtTS > 0 {
		publishedAtTS = &meta.PublishedAtTS
	}

	var id string

	err := p.pool.QueryRow(ctx, `
		INSERT INTO embeddings (message_id, channel_id, published_at_ts, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id)
		DO UPDATE SET embedding = EXCLUDED.embedding, published_at_ts = EXCLUDED.published_at_ts
		RETURNING id
	`, meta.MessageID, meta.ChannelID, publishedAtTS, pgvector.NewVector(vector)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert embedding: %w", err)
	}

	return id, nil
}

func (p *PGVector) Query(ctx context.Context, vector []float32, topK int, cutoffTS int64) ([]Match, error) {
	query := `
		SELECT message_id, 1 - (embedding <=> $1::vector) AS score
		FROM embeddings
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`
	args := []interface{}{pgvector.NewVector(vector), topK}

	if cutoffTS > 0 {
		query = `
			SELECT message_id, 1 - (embedding <=> $1::vector) AS score
			FROM embeddings
			WHERE published_at_ts IS NOT NULL AND published_at_ts >= $3
			ORDER BY embedding <=> $1::vector
			LIMIT $2
		`
		args = append(args, cutoffTS)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var matches []Match

	for rows.Next() {
		var m Match

		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, fmt.Errorf("scan embedding match: %w", err)
		}

		matches = append(matches, m)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate embedding matches: %w", rows.Err())
	}

	return matches, nil
}

// Ready reports whether the pool is reachable and the vector extension is
// installed.
func (p *PGVector) Ready(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	var installed bool

	err := p.pool.QueryRow(probeCtx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`,
	).Scan(&installed)
	if err != nil {
		p.logger.Warn().Err(err).Msg("vector index readiness probe failed")

		return false
	}

	return installed
}
