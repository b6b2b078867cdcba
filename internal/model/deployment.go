package model

import "time"

// DeploymentRecord is one release attempt as stored in the deployments
// table. Status transitions are monotonic and terminal (see status.go).
type DeploymentRecord struct {
	ID                string     `json:"id" db:"id"`
	Version           string     `json:"version" db:"version"`
	Environment       string     `json:"environment" db:"environment"`
	CommitHash        string     `json:"commit_hash" db:"commit_hash"`
	BuildTime         *time.Time `json:"build_time,omitempty" db:"build_time"`
	DeployedBy        string     `json:"deployed_by" db:"deployed_by"`
	Notes             string     `json:"notes" db:"notes"`
	Status            string     `json:"status" db:"status"`
	HealthCheckPassed bool       `json:"health_check_passed" db:"health_check_passed"`
	RollbackVersion   *string    `json:"rollback_version,omitempty" db:"rollback_version"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// DeploymentConfig is the per-release input to the orchestrator.
type DeploymentConfig struct {
	Version     string     `json:"version" validate:"required"`
	Environment string     `json:"environment" validate:"required,oneof=development staging production"`
	CommitHash  string     `json:"commit_hash,omitempty"`
	BuildTime   *time.Time `json:"build_time,omitempty"`
	DeployedBy  string     `json:"deployed_by,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// DeploymentStep is one stage of the pipeline. Steps are built
// incrementally into the result value and never shared across invocations.
type DeploymentStep struct {
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  int64      `json:"duration_ms"`
	Error     string     `json:"error,omitempty"`
	Details   string     `json:"details,omitempty"`
}

// DeploymentResult is the structured outcome of one Deploy invocation.
// The orchestrator always returns a result, never an unwrapped pipeline
// error.
type DeploymentResult struct {
	DeploymentID      string           `json:"deployment_id"`
	Version           string           `json:"version"`
	Status            string           `json:"status"`
	Steps             []DeploymentStep `json:"steps"`
	HealthCheckPassed bool             `json:"health_check_passed"`
	RollbackPerformed bool             `json:"rollback_performed"`
	RollbackVersion   string           `json:"rollback_version,omitempty"`
	TotalTimeMs       int64            `json:"total_time_ms"`
}

// DeploymentStatus is the current-deployment view: the latest ledger
// record joined with live health.
type DeploymentStatus struct {
	Deployment DeploymentRecord `json:"deployment"`
	Health     AggregateHealth  `json:"health"`
}
