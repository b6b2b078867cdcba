package migrate

import "errors"

var (
	// ErrSourceUnavailable means the migrations directory could not be
	// read. Fatal to the run, never retried.
	ErrSourceUnavailable = errors.New("migration source unavailable")

	// ErrTrackingUnavailable means the schema_migrations table could
	// not be queried.
	ErrTrackingUnavailable = errors.New("migration tracking unavailable")

	// ErrRollbackScriptMissing means the most recent migration has no
	// paired <name>.rollback script.
	ErrRollbackScriptMissing = errors.New("rollback script missing")

	// ErrNothingToRollback means no successfully applied migration
	// exists.
	ErrNothingToRollback = errors.New("no applied migration to roll back")
)
