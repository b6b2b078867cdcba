package deploy

import (
	"context"
	"fmt"

	"github.com/lettermill/platform/internal/db"
)

const lockName = "deployment-pipeline"

// Lock is a single-flight guard for the deployment pipeline: a lock row
// flipped with a compare-and-swap update, so two processes cannot run the
// pipeline against the same database concurrently.
type Lock struct {
	db db.DB
}

func NewLock(database db.DB) *Lock {
	return &Lock{db: database}
}

// EnsureTable idempotently creates the lock table. Safe on every startup.
func (l *Lock) EnsureTable(ctx context.Context) error {
	_, err := l.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deployment_locks (
			name TEXT PRIMARY KEY,
			locked BOOLEAN NOT NULL DEFAULT false,
			locked_by TEXT,
			locked_at TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("create deployment_locks: %w", err)
	}
	return nil
}

// Acquire attempts to take the pipeline lock. Returns false when another
// holder has it.
func (l *Lock) Acquire(ctx context.Context, owner string) (bool, error) {
	tag, err := l.db.Exec(ctx, `
		INSERT INTO deployment_locks (name, locked, locked_by, locked_at)
		VALUES ($1, true, $2, now())
		ON CONFLICT (name) DO UPDATE SET
			locked = true, locked_by = $2, locked_at = now()
		WHERE deployment_locks.locked = false`,
		lockName, owner)
	if err != nil {
		return false, fmt.Errorf("acquire deployment lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release frees the pipeline lock.
func (l *Lock) Release(ctx context.Context) error {
	_, err := l.db.Exec(ctx, `
		UPDATE deployment_locks SET locked = false, locked_by = NULL
		WHERE name = $1`, lockName)
	if err != nil {
		return fmt.Errorf("release deployment lock: %w", err)
	}
	return nil
}

// ForceUnlock clears the pipeline lock regardless of holder. This is the
// operator escape hatch for a deploy process that crashed between Acquire
// and Release and left the lock row set. Returns whether a held lock was
// actually cleared.
func (l *Lock) ForceUnlock(ctx context.Context) (bool, error) {
	tag, err := l.db.Exec(ctx, `
		UPDATE deployment_locks SET locked = false, locked_by = NULL, locked_at = NULL
		WHERE name = $1 AND locked = true`, lockName)
	if err != nil {
		return false, fmt.Errorf("force-unlock deployment lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
