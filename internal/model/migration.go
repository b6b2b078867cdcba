package model

import "time"

// MigrationRecord is one applied (or attempted) schema change as stored in
// the schema_migrations tracking table. Records are immutable once written;
// the only mutation is deletion of the most recent record by a rollback.
type MigrationRecord struct {
	Filename        string    `json:"filename" db:"filename"`
	Checksum        string    `json:"checksum" db:"checksum"`
	ExecutedAt      time.Time `json:"executed_at" db:"executed_at"`
	ExecutionTimeMs int64     `json:"execution_time_ms" db:"execution_time_ms"`
	Success         bool      `json:"success" db:"success"`
	Error           *string   `json:"error,omitempty" db:"error"`
}

// MigrationDefinition is one ordered unit of schema-change statements read
// from the migrations directory. Filename ordering is application order.
type MigrationDefinition struct {
	Filename string `json:"filename"`
	Body     string `json:"-"`
	// RollbackBody is the content of the paired <filename>.rollback
	// script, empty when no rollback script exists.
	RollbackBody string `json:"-"`
	HasRollback  bool   `json:"has_rollback"`
}

// MigrationResult is the outcome of one RunPending batch.
type MigrationResult struct {
	Success       bool     `json:"success"`
	MigrationsRun []string `json:"migrations_run"`
	Errors        []string `json:"errors"`
	TotalTimeMs   int64    `json:"total_time_ms"`
}

// MigrationStatus summarizes tracking state for observability.
type MigrationStatus struct {
	Total          int        `json:"total"`
	Executed       int        `json:"executed"`
	Pending        int        `json:"pending"`
	LastMigration  string     `json:"last_migration,omitempty"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
	// Drifted lists applied migrations whose on-disk content no longer
	// matches the checksum recorded at execution time.
	Drifted []string `json:"drifted,omitempty"`
}

// RollbackResult is the outcome of rolling back the most recent migration.
type RollbackResult struct {
	Success    bool   `json:"success"`
	RolledBack string `json:"rolled_back,omitempty"`
	Error      string `json:"error,omitempty"`
}
