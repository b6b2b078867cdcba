package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/lettermill/platform/internal/db"
	"github.com/lettermill/platform/internal/model"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Runner applies pending migrations one at a time, each inside its own
// transaction, and records every attempt in schema_migrations. A failed
// migration halts the batch so migrations are always applied in strict
// order with no gaps.
type Runner struct {
	db     db.TxBeginner
	store  *Store
	logger zerolog.Logger

	// MigrationTimeout bounds one migration's execution. Zero means no
	// deadline.
	MigrationTimeout time.Duration
}

func NewRunner(database db.TxBeginner, store *Store, logger zerolog.Logger) *Runner {
	return &Runner{db: database, store: store, logger: logger}
}

// InitTracking ensures the schema_migrations table exists. Safe to call on
// every startup; never destructive.
func (r *Runner) InitTracking(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			execution_time_ms BIGINT NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error TEXT
		)`)
	if err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrTrackingUnavailable, err)
	}
	return nil
}

// RunPending applies every pending migration in order and stops at the
// first failure. The returned result always reflects what actually ran;
// an error is returned only for setup problems (unreadable source,
// unreachable tracking table).
func (r *Runner) RunPending(ctx context.Context) (*model.MigrationResult, error) {
	pending, err := r.store.GetPending(ctx)
	if err != nil {
		return nil, err
	}

	result := &model.MigrationResult{
		MigrationsRun: []string{},
		Errors:        []string{},
	}
	batchStart := time.Now()

	for _, def := range pending {
		execMs, err := r.runOne(ctx, def)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", def.Filename, err))
			r.logger.Error().Err(err).
				Str("migration", def.Filename).
				Msg("migration failed, halting batch")
			break
		}

		result.MigrationsRun = append(result.MigrationsRun, def.Filename)
		r.logger.Info().
			Str("migration", def.Filename).
			Int64("execution_time_ms", execMs).
			Msg("migration applied")
	}

	result.Success = len(result.Errors) == 0
	result.TotalTimeMs = time.Since(batchStart).Milliseconds()
	return result, nil
}

// runOne executes a single migration in its own transaction and records the
// outcome. The success record commits atomically with the migration itself;
// a failure record is written outside the rolled-back transaction.
func (r *Runner) runOne(ctx context.Context, def model.MigrationDefinition) (int64, error) {
	checksum := Checksum(def.Body)
	start := time.Now()

	execCtx := ctx
	if r.MigrationTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.MigrationTimeout)
		defer cancel()
	}

	tx, err := r.db.Begin(execCtx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.Exec(execCtx, def.Body); err != nil {
		execErr := fmt.Errorf("execute migration: %w", err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Error().Err(rbErr).Str("migration", def.Filename).Msg("transaction rollback failed")
		}
		r.recordFailure(ctx, def.Filename, checksum, time.Since(start).Milliseconds(), execErr)
		return 0, execErr
	}

	// A retried migration may have a success=false row from an earlier
	// attempt; the upsert replaces it so retry-after-fix works.
	execMs := time.Since(start).Milliseconds()
	_, err = tx.Exec(execCtx, `
		INSERT INTO schema_migrations (filename, checksum, executed_at, execution_time_ms, success)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (filename) DO UPDATE SET
			checksum = EXCLUDED.checksum,
			executed_at = EXCLUDED.executed_at,
			execution_time_ms = EXCLUDED.execution_time_ms,
			success = EXCLUDED.success,
			error = NULL`,
		def.Filename, checksum, start, execMs)
	if err != nil {
		recordErr := fmt.Errorf("record migration: %w", err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Error().Err(rbErr).Str("migration", def.Filename).Msg("transaction rollback failed")
		}
		r.recordFailure(ctx, def.Filename, checksum, execMs, recordErr)
		return 0, recordErr
	}

	if err := tx.Commit(execCtx); err != nil {
		commitErr := fmt.Errorf("commit migration: %w", err)
		r.recordFailure(ctx, def.Filename, checksum, execMs, commitErr)
		return 0, commitErr
	}

	return execMs, nil
}

// recordFailure writes a success=false record outside any transaction so
// the attempt survives the rollback. Best effort: a write failure here is
// logged, not propagated over the original error.
func (r *Runner) recordFailure(ctx context.Context, filename, checksum string, execMs int64, cause error) {
	msg := cause.Error()
	_, err := r.db.Exec(ctx, `
		INSERT INTO schema_migrations (filename, checksum, executed_at, execution_time_ms, success, error)
		VALUES ($1, $2, now(), $3, false, $4)
		ON CONFLICT (filename) DO UPDATE SET
			checksum = EXCLUDED.checksum,
			executed_at = EXCLUDED.executed_at,
			execution_time_ms = EXCLUDED.execution_time_ms,
			success = EXCLUDED.success,
			error = EXCLUDED.error`,
		filename, checksum, execMs, msg)
	if err != nil {
		r.logger.Error().Err(err).Str("migration", filename).Msg("failed to record migration failure")
	}
}

// Status summarizes tracking state: counts, the most recent applied
// migration, and any applied migration whose on-disk content has drifted
// from the recorded checksum.
func (r *Runner) Status(ctx context.Context) (*model.MigrationStatus, error) {
	defs, err := r.store.ListDefinitions()
	if err != nil {
		return nil, err
	}

	applied, err := r.store.GetApplied(ctx)
	if err != nil {
		return nil, err
	}

	status := &model.MigrationStatus{
		Total:    len(defs),
		Executed: len(applied),
	}

	for _, def := range defs {
		rec, ok := applied[def.Filename]
		if !ok {
			status.Pending++
			continue
		}
		if Checksum(def.Body) != rec.Checksum {
			status.Drifted = append(status.Drifted, def.Filename)
		}
	}

	for _, rec := range applied {
		if status.LastExecutedAt == nil || rec.ExecutedAt.After(*status.LastExecutedAt) {
			t := rec.ExecutedAt
			status.LastExecutedAt = &t
			status.LastMigration = rec.Filename
		}
	}

	return status, nil
}

// RollbackLast reverses the most recently applied migration by executing
// its paired rollback script in a transaction, then deletes its record. If
// the script fails, the transaction is rolled back and the record is left
// intact: the migration is still applied.
func (r *Runner) RollbackLast(ctx context.Context) (*model.RollbackResult, error) {
	var filename string
	err := r.db.QueryRow(ctx, `
		SELECT filename FROM schema_migrations
		WHERE success = true
		ORDER BY executed_at DESC LIMIT 1`).Scan(&filename)
	if err != nil {
		if isNoRows(err) {
			return &model.RollbackResult{Success: false, Error: ErrNothingToRollback.Error()}, ErrNothingToRollback
		}
		return nil, fmt.Errorf("%w: find last migration: %v", ErrTrackingUnavailable, err)
	}

	defs, err := r.store.ListDefinitions()
	if err != nil {
		return nil, err
	}

	var def *model.MigrationDefinition
	for i := range defs {
		if defs[i].Filename == filename {
			def = &defs[i]
			break
		}
	}
	if def == nil || !def.HasRollback {
		rollbackErr := fmt.Errorf("%w: %s%s", ErrRollbackScriptMissing, filename, rollbackSuffix)
		return &model.RollbackResult{Success: false, Error: rollbackErr.Error()}, rollbackErr
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rollback transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, def.RollbackBody); err != nil {
		execErr := fmt.Errorf("execute rollback of %s: %w", filename, err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Error().Err(rbErr).Str("migration", filename).Msg("rollback transaction abort failed")
		}
		return &model.RollbackResult{Success: false, Error: execErr.Error()}, execErr
	}

	if _, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE filename = $1`, filename); err != nil {
		delErr := fmt.Errorf("delete migration record %s: %w", filename, err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Error().Err(rbErr).Str("migration", filename).Msg("rollback transaction abort failed")
		}
		return &model.RollbackResult{Success: false, Error: delErr.Error()}, delErr
	}

	if err := tx.Commit(ctx); err != nil {
		commitErr := fmt.Errorf("commit rollback of %s: %w", filename, err)
		return &model.RollbackResult{Success: false, Error: commitErr.Error()}, commitErr
	}

	r.logger.Info().Str("migration", filename).Msg("migration rolled back")
	return &model.RollbackResult{Success: true, RolledBack: filename}, nil
}
