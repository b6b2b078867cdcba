package deploy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lettermill/platform/internal/health"
	"github.com/lettermill/platform/internal/metrics"
	"github.com/lettermill/platform/internal/model"
)

// Pipeline step names, in execution order.
const (
	StepPreCheck  = "Pre-deployment Health Check"
	StepMigrate   = "Database Migrations"
	StepAppStart  = "Application Startup"
	StepPostCheck = "Post-deployment Health Check"
	StepVerify    = "Deployment Verification"
)

var validate = validator.New()

// MigrationRunner is the slice of the migration runner the pipeline needs.
type MigrationRunner interface {
	RunPending(ctx context.Context) (*model.MigrationResult, error)
	RollbackLast(ctx context.Context) (*model.RollbackResult, error)
}

// Options configure the pipeline's health gate and failure policy.
type Options struct {
	HealthCheckTimeout  time.Duration
	HealthCheckInterval time.Duration
	RollbackOnFailure   bool
}

// Orchestrator coordinates one release as a fixed five-step pipeline:
// pre-check, migrations, app-start marker, readiness polling, version
// verification. The first failed step halts forward progress. Step errors
// never escape Deploy; the result is always a structured value.
type Orchestrator struct {
	ledger   *LedgerService
	runner   MigrationRunner
	health   health.Provider
	version  health.VersionReporter
	lock     *Lock
	rollback *RollbackCoordinator
	opts     Options
	logger   zerolog.Logger
}

func NewOrchestrator(ledger *LedgerService, runner MigrationRunner, healthProvider health.Provider, versionReporter health.VersionReporter, lock *Lock, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 5 * time.Second
	}
	if opts.HealthCheckTimeout <= 0 {
		opts.HealthCheckTimeout = 60 * time.Second
	}
	return &Orchestrator{
		ledger:   ledger,
		runner:   runner,
		health:   healthProvider,
		version:  versionReporter,
		lock:     lock,
		rollback: NewRollbackCoordinator(ledger, runner, logger),
		opts:     opts,
		logger:   logger,
	}
}

// stepOutcome distinguishes an expected gate failure (unhealthy service,
// failed migration, version mismatch) from an unexpected infrastructure
// error. Unexpected errors trigger rollback at any step; gate failures
// trigger rollback only at the post-deployment health check.
type stepOutcome struct {
	details    string
	err        error
	unexpected bool
}

// Deploy runs the pipeline for one release. It returns an error only when
// the pipeline could not start (invalid config, lock held, ledger
// unreachable); once started it always returns a structured result.
func (o *Orchestrator) Deploy(ctx context.Context, cfg model.DeploymentConfig) (*model.DeploymentResult, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid deployment config: %w", err)
	}

	acquired, err := o.lock.Acquire(ctx, cfg.DeployedBy)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrDeployInProgress
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx)); err != nil {
			o.logger.Error().Err(err).Msg("failed to release deployment lock")
		}
	}()

	rec := &model.DeploymentRecord{
		ID:          uuid.NewString(),
		Version:     cfg.Version,
		Environment: cfg.Environment,
		CommitHash:  cfg.CommitHash,
		BuildTime:   cfg.BuildTime,
		DeployedBy:  cfg.DeployedBy,
		Notes:       cfg.Notes,
		Status:      model.StatusStarted,
		CreatedAt:   time.Now(),
	}
	if err := o.ledger.Create(ctx, rec); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("deployment_id", rec.ID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Msg("deployment started")

	start := time.Now()
	steps := newSteps()

	healthPassed := false
	failed := false
	unexpected := false

	finish := func(i int, outcome stepOutcome) {
		completeStep(&steps[i], outcome)
		if outcome.err != nil {
			failed = true
			unexpected = unexpected || outcome.unexpected
			o.logger.Error().Err(outcome.err).Str("step", steps[i].Name).Msg("pipeline step failed")
		}
	}

	// Step 1: pre-deployment health check.
	startStep(&steps[0])
	finish(0, o.preCheck(ctx))

	// Step 2: database migrations.
	if !failed {
		startStep(&steps[1])
		finish(1, o.migrateStep(ctx))
	}

	// Step 3: application startup is managed externally; this is a
	// marker step only.
	if !failed {
		startStep(&steps[2])
		finish(2, stepOutcome{details: "application startup managed externally"})
	}

	// Step 4: poll readiness until the configured window is exhausted.
	if !failed {
		startStep(&steps[3])
		outcome := o.postCheck(ctx)
		finish(3, outcome)
		healthPassed = outcome.err == nil
	}

	// Step 5: version verification, only meaningful after a passed
	// health gate.
	if healthPassed {
		startStep(&steps[4])
		finish(4, o.verify(ctx, cfg.Version))
	} else if steps[3].Status == model.StepFailed {
		steps[4].Status = model.StepSkipped
	}

	// Rollback policy: post-check gate failure or an unexpected error
	// anywhere, when configured.
	rollbackPerformed := false
	rollbackVersion := ""
	postCheckFailed := steps[3].Status == model.StepFailed
	if o.opts.RollbackOnFailure && (postCheckFailed || unexpected) {
		rollbackPerformed, rollbackVersion = o.rollback.Perform(ctx, rec.ID)
	}

	status := model.StatusFailed
	switch {
	case rollbackPerformed:
		status = model.StatusRolledBack
	case healthPassed && !failed:
		status = model.StatusCompleted
	}

	var rollbackVersionPtr *string
	if rollbackPerformed {
		rollbackVersionPtr = &rollbackVersion
	}
	if err := o.ledger.Finalize(ctx, rec.ID, status, healthPassed, rollbackVersionPtr); err != nil {
		o.logger.Error().Err(err).Str("deployment_id", rec.ID).Msg("failed to finalize deployment record")
	}

	total := time.Since(start)
	metrics.ObserveDeployment(status, total)

	o.logger.Info().
		Str("deployment_id", rec.ID).
		Str("status", status).
		Bool("health_check_passed", healthPassed).
		Bool("rollback_performed", rollbackPerformed).
		Dur("total", total).
		Msg("deployment finished")

	return &model.DeploymentResult{
		DeploymentID:      rec.ID,
		Version:           cfg.Version,
		Status:            status,
		Steps:             steps,
		HealthCheckPassed: healthPassed,
		RollbackPerformed: rollbackPerformed,
		RollbackVersion:   rollbackVersion,
		TotalTimeMs:       total.Milliseconds(),
	}, nil
}

func newSteps() []model.DeploymentStep {
	names := []string{StepPreCheck, StepMigrate, StepAppStart, StepPostCheck, StepVerify}
	steps := make([]model.DeploymentStep, len(names))
	for i, name := range names {
		steps[i] = model.DeploymentStep{Name: name, Status: model.StepPending}
	}
	return steps
}

func startStep(step *model.DeploymentStep) {
	now := time.Now()
	step.Status = model.StepRunning
	step.StartTime = &now
}

func completeStep(step *model.DeploymentStep, outcome stepOutcome) {
	now := time.Now()
	step.EndTime = &now
	if step.StartTime != nil {
		step.Duration = now.Sub(*step.StartTime).Milliseconds()
	}
	step.Details = outcome.details
	if outcome.err != nil {
		step.Status = model.StepFailed
		step.Error = outcome.err.Error()
		return
	}
	step.Status = model.StepCompleted
}

func (o *Orchestrator) preCheck(ctx context.Context) stepOutcome {
	aggregate, err := o.health.AggregateHealth(ctx)
	if err != nil {
		return stepOutcome{err: fmt.Errorf("aggregate health: %w", err), unexpected: true}
	}

	var unhealthy []string
	for name, svc := range aggregate.Services {
		if svc.Critical && svc.Status != model.HealthHealthy {
			unhealthy = append(unhealthy, name)
		}
	}
	if len(unhealthy) > 0 {
		sort.Strings(unhealthy)
		return stepOutcome{err: fmt.Errorf("critical services unhealthy: %s", strings.Join(unhealthy, ", "))}
	}
	return stepOutcome{details: "all critical services healthy"}
}

func (o *Orchestrator) migrateStep(ctx context.Context) stepOutcome {
	result, err := o.runner.RunPending(ctx)
	if err != nil {
		return stepOutcome{err: fmt.Errorf("run migrations: %w", err), unexpected: true}
	}

	metrics.ObserveMigrationBatch(len(result.MigrationsRun), len(result.Errors), time.Duration(result.TotalTimeMs)*time.Millisecond)

	if !result.Success {
		return stepOutcome{
			details: fmt.Sprintf("applied %d migrations before failure", len(result.MigrationsRun)),
			err:     fmt.Errorf("migrations failed: %s", strings.Join(result.Errors, "; ")),
		}
	}
	return stepOutcome{details: fmt.Sprintf("applied %d migrations", len(result.MigrationsRun))}
}

func (o *Orchestrator) postCheck(ctx context.Context) stepOutcome {
	attempts := int(o.opts.HealthCheckTimeout / o.opts.HealthCheckInterval)
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		readiness, err := o.health.Readiness(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Int("attempt", attempt).Msg("readiness probe failed")
		} else if readiness.Ready {
			return stepOutcome{details: fmt.Sprintf("ready after %d of %d attempts", attempt, attempts)}
		} else {
			o.logger.Info().
				Int("attempt", attempt).
				Strs("issues", readiness.Issues).
				Msg("application not ready yet")
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return stepOutcome{err: fmt.Errorf("readiness polling interrupted: %w", ctx.Err()), unexpected: true}
			case <-time.After(o.opts.HealthCheckInterval):
			}
		}
	}

	return stepOutcome{err: fmt.Errorf("%w: not ready after %d attempts over %s",
		ErrHealthCheckTimeout, attempts, o.opts.HealthCheckTimeout)}
}

func (o *Orchestrator) verify(ctx context.Context, wantVersion string) stepOutcome {
	version, err := o.version.Version(ctx)
	if err != nil {
		return stepOutcome{err: fmt.Errorf("fetch app version: %w", err), unexpected: true}
	}
	if version.Version != wantVersion {
		return stepOutcome{err: fmt.Errorf("%w: running %q, expected %q", ErrVersionMismatch, version.Version, wantVersion)}
	}
	return stepOutcome{details: fmt.Sprintf("version %s confirmed", wantVersion)}
}

// CurrentStatus returns the latest deployment record joined with live
// health, or nil when no deployment has ever run.
func (o *Orchestrator) CurrentStatus(ctx context.Context) (*model.DeploymentStatus, error) {
	latest, err := o.ledger.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	aggregate, err := o.health.AggregateHealth(ctx)
	if err != nil {
		return nil, err
	}

	return &model.DeploymentStatus{Deployment: *latest, Health: *aggregate}, nil
}
