package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	coreerrors "github.com/lantern-intel/lantern/internal/core/errors"
)

// GetTranslation looks up a cached translation for (message, language).
// Returns ErrCacheMiss when no entry exists.
func (db *DB) GetTranslation(ctx context.Context, messageID, lang string) (string, error) {
	var text string

	err := db.Pool.QueryRow(ctx, `
		SELECT translated_text
		FROM translation_cache
		WHERE message_id = $1 AND lang = $2
	`, toUUID(messageID), lang).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", coreerrors.ErrCacheMiss
		}

		return "", fmt.Errorf("get cached translation: %w", err)
	}

	return text, nil
}

// PutTranslation stores a translation in the cache. Re-translations of the
// same message overwrite the previous entry.
func (db *DB) PutTranslation(ctx context.Context, messageID, lang, text string, tokenCount int) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO translation_cache (message_id, lang, translated_text, token_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, lang) DO UPDATE SET
			translated_text = EXCLUDED.translated_text,
			token_count = EXCLUDED.token_count,
			created_at = now()
	`, toUUID(messageID), lang, SanitizeUTF8(text), toInt4(tokenCount))
	if err != nil {
		return fmt.Errorf("put cached translation: %w", err)
	}

	return nil
}

// PurgeTranslationCache removes cache entries whose message no longer exists.
func (db *DB) PurgeTranslationCache(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM translation_cache tc
		WHERE NOT EXISTS (SELECT 1 FROM messages m WHERE m.id = tc.message_id)
	`)
	if err != nil {
		return 0, fmt.Errorf("purge translation cache: %w", err)
	}

	return tag.RowsAffected(), nil
}
