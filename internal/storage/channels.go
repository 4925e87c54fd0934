package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lantern-intel/lantern/internal/core/domain"
	coreerrors "github.com/lantern-intel/lantern/internal/core/errors"
)

// UpsertChannel creates or updates a channel record.
func (db *DB) UpsertChannel(ctx context.Context, ch *domain.Channel) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO channels (id, title, source_language, target_language)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			source_language = EXCLUDED.source_language,
			target_language = EXCLUDED.target_language
	`, toUUID(ch.ID), SanitizeUTF8(ch.Title), ch.SourceLanguage, ch.TargetLanguage)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}

	return nil
}

// GetChannel fetches a channel by id.
func (db *DB) GetChannel(ctx context.Context, id string) (*domain.Channel, error) {
	var ch domain.Channel

	row := db.Pool.QueryRow(ctx, `
		SELECT id, title, source_language, target_language, created_at
		FROM channels
		WHERE id = $1
	`, toUUID(id))

	var chID = toUUID("")

	if err := row.Scan(&chID, &ch.Title, &ch.SourceLanguage, &ch.TargetLanguage, &ch.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("get channel: %w", err)
	}

	ch.ID = fromUUID(chID)

	return &ch, nil
}

// ListChannels returns all channels ordered by title.
func (db *DB) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, title, source_language, target_language, created_at
		FROM channels
		ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.Channel

	for rows.Next() {
		var ch domain.Channel

		chID := toUUID("")

		if err := rows.Scan(&chID, &ch.Title, &ch.SourceLanguage, &ch.TargetLanguage, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}

		ch.ID = fromUUID(chID)
		channels = append(channels, ch)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate channel rows: %w", rows.Err())
	}

	return channels, nil
}

// DeleteChannel removes a channel; messages and embeddings cascade.
func (db *DB) DeleteChannel(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, toUUID(id)); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	return nil
}
