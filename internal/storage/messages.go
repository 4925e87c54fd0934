package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lantern-intel/lantern/internal/core/domain"
)

const messageColumns = `
	id, channel_id, original_text, translated_text, source_language,
	target_language, needs_translation, translation_priority, is_duplicate,
	duplicate_group_id, originality_score, embedding_id, published_at,
	fetched_at, translated_at`

// InsertMessage stores a newly ingested message.
func (db *DB) InsertMessage(ctx context.Context, msg *domain.Message) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO messages (
			id, channel_id, original_text, source_language, target_language,
			needs_translation, translation_priority, published_at, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`,
		toUUID(msg.ID),
		toUUID(msg.ChannelID),
		SanitizeUTF8(msg.OriginalText),
		msg.SourceLanguage,
		msg.TargetLanguage,
		msg.NeedsTranslation,
		string(msg.TranslationPriority),
		toTimestamptz(msg.PublishedAt),
		toTimestamptz(msg.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

// GetMessage fetches a single message by id.
func (db *DB) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, toUUID(id))

	msg, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}

	return msg, nil
}

// GetMessagesPendingDedup fetches messages that have not been through a dedup
// pass yet, oldest first by effective timestamp. Messages with blank text are
// excluded; the dedup engine never embeds them.
func (db *DB) GetMessagesPendingDedup(ctx context.Context, limit int) ([]*domain.Message, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE embedding_id IS NULL AND btrim(original_text) <> ''
		ORDER BY COALESCE(published_at, fetched_at) ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages pending dedup: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// CountPendingDedup returns the size of the dedup backlog.
func (db *DB) CountPendingDedup(ctx context.Context) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE embedding_id IS NULL AND btrim(original_text) <> ''
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending dedup: %w", err)
	}

	return count, nil
}

// UpdateDedupResult persists the dedup engine's verdict for one message.
func (db *DB) UpdateDedupResult(ctx context.Context, msg *domain.Message) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE messages
		SET is_duplicate = $2,
			duplicate_group_id = $3,
			originality_score = $4,
			embedding_id = $5,
			updated_at = now()
		WHERE id = $1
	`,
		toUUID(msg.ID),
		msg.IsDuplicate,
		toUUID(msg.DuplicateGroupID),
		toInt4(msg.OriginalityScore),
		toUUID(msg.EmbeddingID),
	)
	if err != nil {
		return fmt.Errorf("update dedup result: %w", err)
	}

	return nil
}

// UpdateTranslationPlan persists the classifier's verdict for one message.
func (db *DB) UpdateTranslationPlan(ctx context.Context, messageID string, priority domain.Priority, needsTranslation bool) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE messages
		SET translation_priority = $2,
			needs_translation = $3,
			updated_at = now()
		WHERE id = $1
	`, toUUID(messageID), string(priority), needsTranslation)
	if err != nil {
		return fmt.Errorf("update translation plan: %w", err)
	}

	return nil
}

// ClaimPendingTranslations atomically claims up to limit messages awaiting
// translation. Ordering drains high before normal before low, grouped by
// channel within a tier so batches share language pairs. Claimed rows are
// stamped so crashed workers can be recovered by ReleaseStuckTranslations.
func (db *DB) ClaimPendingTranslations(ctx context.Context, limit int) ([]domain.Message, error) {
	rows, err := db.Pool.Query(ctx, `
		WITH claimed AS (
			SELECT id FROM messages
			WHERE needs_translation
			  AND translation_priority IN ('high', 'normal', 'low')
			  AND translation_claimed_at IS NULL
			ORDER BY CASE translation_priority
					WHEN 'high' THEN 0
					WHEN 'normal' THEN 1
					ELSE 2
				END,
				channel_id,
				COALESCE(published_at, fetched_at) ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE messages m
		SET translation_claimed_at = now()
		FROM claimed
		WHERE m.id = claimed.id
		RETURNING m.id, m.channel_id, m.original_text, m.translated_text,
			m.source_language, m.target_language, m.needs_translation,
			m.translation_priority, m.is_duplicate, m.duplicate_group_id,
			m.originality_score, m.embedding_id, m.published_at, m.fetched_at,
			m.translated_at
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending translations: %w", err)
	}
	defer rows.Close()

	claimed, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, len(claimed))
	for i, m := range claimed {
		messages[i] = *m
	}

	return messages, nil
}

// SaveTranslation stores a finished translation and releases the claim.
func (db *DB) SaveTranslation(ctx context.Context, messageID, translatedText string, translatedAt time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE messages
		SET translated_text = $2,
			needs_translation = FALSE,
			translated_at = $3,
			translation_claimed_at = NULL,
			updated_at = now()
		WHERE id = $1
	`, toUUID(messageID), SanitizeUTF8(translatedText), toTimestamptz(translatedAt))
	if err != nil {
		return fmt.Errorf("save translation: %w", err)
	}

	return nil
}

// ReleaseStuckTranslations returns claimed-but-unfinished messages to the
// pending pool. Covers workers that crashed mid-batch.
func (db *DB) ReleaseStuckTranslations(ctx context.Context, stuckAfter time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE messages
		SET translation_claimed_at = NULL,
			updated_at = now()
		WHERE needs_translation
		  AND translation_claimed_at IS NOT NULL
		  AND translation_claimed_at < now() - make_interval(secs => $1)
	`, stuckAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("release stuck translations: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountPendingTranslations returns the unclaimed translation backlog by tier.
func (db *DB) CountPendingTranslations(ctx context.Context) (map[domain.Priority]int, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT translation_priority, COUNT(*)
		FROM messages
		WHERE needs_translation
		  AND translation_priority IN ('high', 'normal', 'low')
		  AND translation_claimed_at IS NULL
		GROUP BY translation_priority
	`)
	if err != nil {
		return nil, fmt.Errorf("count pending translations: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Priority]int)

	for rows.Next() {
		var (
			priority string
			count    int
		)

		if err := rows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("scan translation backlog row: %w", err)
		}

		counts[domain.Priority(priority)] = count
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate translation backlog rows: %w", rows.Err())
	}

	return counts, nil
}

// GetDuplicateGroup returns all members of a duplicate group, anchor first.
func (db *DB) GetDuplicateGroup(ctx context.Context, groupID string) ([]*domain.Message, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE duplicate_group_id = $1
		ORDER BY is_duplicate ASC, COALESCE(published_at, fetched_at) ASC
	`, toUUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("get duplicate group: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]*domain.Message, error) {
	var messages []*domain.Message

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate message rows: %w", rows.Err())
	}

	return messages, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		id               pgtype.UUID
		channelID        pgtype.UUID
		originalText     string
		translatedText   pgtype.Text
		sourceLanguage   string
		targetLanguage   string
		needsTranslation bool
		priority         string
		isDuplicate      bool
		duplicateGroupID pgtype.UUID
		originalityScore pgtype.Int4
		embeddingID      pgtype.UUID
		publishedAt      pgtype.Timestamptz
		fetchedAt        pgtype.Timestamptz
		translatedAt     pgtype.Timestamptz
	)

	if err := row.Scan(
		&id, &channelID, &originalText, &translatedText, &sourceLanguage,
		&targetLanguage, &needsTranslation, &priority, &isDuplicate,
		&duplicateGroupID, &originalityScore, &embeddingID, &publishedAt,
		&fetchedAt, &translatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}

	score := 0
	if originalityScore.Valid {
		score = int(originalityScore.Int32)
	}

	return &domain.Message{
		ID:                  fromUUID(id),
		ChannelID:           fromUUID(channelID),
		OriginalText:        originalText,
		TranslatedText:      fromText(translatedText),
		SourceLanguage:      sourceLanguage,
		TargetLanguage:      targetLanguage,
		NeedsTranslation:    needsTranslation,
		TranslationPriority: domain.Priority(priority),
		IsDuplicate:         isDuplicate,
		DuplicateGroupID:    fromUUID(duplicateGroupID),
		OriginalityScore:    score,
		EmbeddingID:         fromUUID(embeddingID),
		PublishedAt:         fromTimestamptz(publishedAt),
		FetchedAt:           fromTimestamptz(fetchedAt),
		TranslatedAt:        fromTimestamptz(translatedAt),
	}, nil
}
