package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lettermill/platform/internal/db"
	"github.com/lettermill/platform/internal/model"
)

// LedgerService persists deployment records. A record is created as
// "started" when the pipeline begins and updated exactly once to a
// terminal status; terminal records are never resurrected.
type LedgerService struct {
	db db.DB
}

func NewLedgerService(database db.DB) *LedgerService {
	return &LedgerService{db: database}
}

const deploymentColumns = `id, version, environment, commit_hash, build_time, deployed_by, notes, status, health_check_passed, rollback_version, created_at, completed_at`

func scanDeployment(row interface{ Scan(dest ...any) error }) (model.DeploymentRecord, error) {
	var d model.DeploymentRecord
	err := row.Scan(&d.ID, &d.Version, &d.Environment, &d.CommitHash, &d.BuildTime,
		&d.DeployedBy, &d.Notes, &d.Status, &d.HealthCheckPassed, &d.RollbackVersion,
		&d.CreatedAt, &d.CompletedAt)
	if err != nil {
		return d, err
	}
	return d, nil
}

func (s *LedgerService) Create(ctx context.Context, rec *model.DeploymentRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO deployments (id, version, environment, commit_hash, build_time, deployed_by, notes, status, health_check_passed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)`,
		rec.ID, rec.Version, rec.Environment, rec.CommitHash, rec.BuildTime,
		rec.DeployedBy, rec.Notes, rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create deployment %s: %w", rec.ID, err)
	}
	return nil
}

// Finalize moves a deployment to a terminal status. The guard on the
// current status enforces monotonic transitions: finalizing an already
// terminal record affects zero rows and fails.
func (s *LedgerService) Finalize(ctx context.Context, id, status string, healthCheckPassed bool, rollbackVersion *string) error {
	if !model.TerminalStatus(status) {
		return fmt.Errorf("finalize deployment %s: %q is not a terminal status", id, status)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE deployments
		SET status = $2, health_check_passed = $3, rollback_version = $4, completed_at = now()
		WHERE id = $1 AND status = $5`,
		id, status, healthCheckPassed, rollbackVersion, model.StatusStarted)
	if err != nil {
		return fmt.Errorf("finalize deployment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize deployment %s: %w", id, ErrAlreadyFinalized)
	}
	return nil
}

// History returns the most recent deployments, newest first.
func (s *LedgerService) History(ctx context.Context, limit int) ([]model.DeploymentRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+deploymentColumns+` FROM deployments
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []model.DeploymentRecord
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return deployments, nil
}

// Latest returns the most recent deployment record, or nil when the
// ledger is empty.
func (s *LedgerService) Latest(ctx context.Context) (*model.DeploymentRecord, error) {
	d, err := scanDeployment(s.db.QueryRow(ctx, `
		SELECT `+deploymentColumns+` FROM deployments
		ORDER BY created_at DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest deployment: %w", err)
	}
	return &d, nil
}

// LastHealthy returns the most recent completed deployment that passed its
// health check, excluding the given deployment. Nil when none exists.
func (s *LedgerService) LastHealthy(ctx context.Context, excludeID string) (*model.DeploymentRecord, error) {
	d, err := scanDeployment(s.db.QueryRow(ctx, `
		SELECT `+deploymentColumns+` FROM deployments
		WHERE status = $1 AND health_check_passed = true AND id <> $2
		ORDER BY created_at DESC LIMIT 1`,
		model.StatusCompleted, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last healthy deployment: %w", err)
	}
	return &d, nil
}
