package storage

import (
	"context"
	"fmt"
)

// Advisory lock ids for singleton background jobs. Only one process in the
// deployment runs each job at a time.
const (
	LockDedupWorker       int64 = 2001
	LockTranslationWorker int64 = 2002
)

// TryAcquireAdvisoryLock attempts to take a session-level advisory lock
// without blocking. Returns false when another process holds it.
func (db *DB) TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error) {
	var acquired bool

	err := db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("try acquire advisory lock: %w", err)
	}

	return acquired, nil
}

// ReleaseAdvisoryLock releases a previously acquired advisory lock.
func (db *DB) ReleaseAdvisoryLock(ctx context.Context, lockID int64) error {
	if _, err := db.Pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}

	return nil
}
