package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lantern-intel/lantern/internal/core/domain"
)

// InsertDeadLetter records a job that exhausted its retry budget.
func (db *DB) InsertDeadLetter(ctx context.Context, jobName, errText, stackTrace string, attempts int) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO dead_letters (job_name, error, stack_trace, attempts)
		VALUES ($1, $2, $3, $4)
	`, jobName, SanitizeUTF8(errText), SanitizeUTF8(stackTrace), toInt4(attempts))
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}

	return nil
}

// ListDeadLetters returns the most recent dead-letter entries.
func (db *DB) ListDeadLetters(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, job_name, error, stack_trace, attempts, created_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []domain.DeadLetter

	for rows.Next() {
		var (
			dl        domain.DeadLetter
			id        pgtype.UUID
			attempts  pgtype.Int4
			createdAt pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &dl.JobName, &dl.Error, &dl.StackTrace, &attempts, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dead letter row: %w", err)
		}

		dl.ID = fromUUID(id)
		dl.Attempts = int(attempts.Int32)
		dl.CreatedAt = fromTimestamptz(createdAt)

		letters = append(letters, dl)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate dead letter rows: %w", rows.Err())
	}

	return letters, nil
}

// PruneDeadLetters deletes entries older than the given number of days.
func (db *DB) PruneDeadLetters(ctx context.Context, olderThanDays int) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM dead_letters
		WHERE created_at < now() - make_interval(days => $1)
	`, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("prune dead letters: %w", err)
	}

	return tag.RowsAffected(), nil
}
