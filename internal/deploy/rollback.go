package deploy

import (
	"context"

	"github.com/rs/zerolog"
)

// RollbackCoordinator performs best-effort recovery when a deployment
// fails its health gate.
type RollbackCoordinator struct {
	ledger *LedgerService
	runner MigrationRunner
	logger zerolog.Logger
}

func NewRollbackCoordinator(ledger *LedgerService, runner MigrationRunner, logger zerolog.Logger) *RollbackCoordinator {
	return &RollbackCoordinator{ledger: ledger, runner: runner, logger: logger}
}

// Perform rolls back to the most recent prior healthy deployment. It
// returns whether a rollback happened and the version restored to. When no
// prior healthy deployment exists there is nothing safe to roll back to
// and nothing is done.
//
// A schema-level rollback failure is logged but does not abort the
// bookkeeping: the primary signal operators need is that this deployment
// is no longer the active one, even if the schema change needs manual
// follow-up.
func (c *RollbackCoordinator) Perform(ctx context.Context, excludeDeploymentID string) (bool, string) {
	target, err := c.ledger.LastHealthy(ctx, excludeDeploymentID)
	if err != nil {
		c.logger.Error().Err(err).Msg("rollback aborted: cannot read deployment history")
		return false, ""
	}
	if target == nil {
		c.logger.Warn().Msg("rollback skipped: no prior healthy deployment to roll back to")
		return false, ""
	}

	c.logger.Info().
		Str("target_deployment", target.ID).
		Str("target_version", target.Version).
		Msg("rolling back deployment")

	if _, err := c.runner.RollbackLast(ctx); err != nil {
		c.logger.Error().Err(err).
			Str("target_version", target.Version).
			Msg("schema rollback failed, manual follow-up required")
	}

	return true, target.Version
}
