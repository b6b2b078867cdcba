package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lettermill/platform/internal/config"
	"github.com/lettermill/platform/internal/db"
	"github.com/lettermill/platform/internal/deploy"
	"github.com/lettermill/platform/internal/health"
	"github.com/lettermill/platform/internal/logging"
	"github.com/lettermill/platform/internal/migrate"
	"github.com/lettermill/platform/internal/model"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		cmdMigrate(os.Args[2:])
	case "migrate-status":
		cmdMigrateStatus(os.Args[2:])
	case "rollback":
		cmdRollback(os.Args[2:])
	case "deploy":
		cmdDeploy(os.Args[2:])
	case "history":
		cmdHistory(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "force-unlock":
		cmdForceUnlock(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: deployctl <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  migrate         Apply all pending schema migrations")
	fmt.Fprintln(os.Stderr, "  migrate-status  Show applied/pending migrations and checksum drift")
	fmt.Fprintln(os.Stderr, "  rollback        Roll back the most recent migration")
	fmt.Fprintln(os.Stderr, "  deploy          Run the full deployment pipeline")
	fmt.Fprintln(os.Stderr, "  history         List past deployments")
	fmt.Fprintln(os.Stderr, "  status          Show the latest deployment and current health")
	fmt.Fprintln(os.Stderr, "  force-unlock    Clear a stuck deployment lock left by a crashed deploy")
}

// setup connects to the database and builds the shared services. Every
// subcommand drives the same code paths as the deploy agent.
type services struct {
	pool   *pgxpool.Pool
	cfg    *config.Config
	logger zerolog.Logger
	runner *migrate.Runner
	ledger *deploy.LedgerService
	lock   *deploy.Lock
}

func setup(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate("deployctl"); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := migrate.NewStore(cfg.MigrationsDir, pool)
	runner := migrate.NewRunner(pool, store, logger)
	runner.MigrationTimeout = cfg.MigrationTimeout
	if err := runner.InitTracking(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &services{
		pool:   pool,
		cfg:    cfg,
		logger: logger,
		runner: runner,
		ledger: deploy.NewLedgerService(pool),
		lock:   deploy.NewLock(pool),
	}, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	svc, err := setup(ctx)
	if err != nil {
		fatal(err)
	}
	defer svc.pool.Close()

	result, err := svc.runner.RunPending(ctx)
	if err != nil {
		fatal(err)
	}

	for _, name := range result.MigrationsRun {
		fmt.Printf("applied %s\n", name)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "failed  %s\n", e)
	}
	if !result.Success {
		os.Exit(1)
	}
	fmt.Printf("%d migration(s) applied in %dms\n", len(result.MigrationsRun), result.TotalTimeMs)
}

func cmdMigrateStatus(args []string) {
	fs := flag.NewFlagSet("migrate-status", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	svc, err := setup(ctx)
	if err != nil {
		fatal(err)
	}
	defer svc.pool.Close()

	status, err := svc.runner.Status(ctx)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("total:    %d\n", status.Total)
	fmt.Printf("executed: %d\n", status.Executed)
	fmt.Printf("pending:  %d\n", status.Pending)
	if status.LastMigration != "" {
		fmt.Printf("last:     %s (%s)\n", status.LastMigration, status.LastExecutedAt.Format(time.RFC3339))
	}
	for _, name := range status.Drifted {
		fmt.Printf("drifted:  %s\n", name)
	}
	if len(status.Drifted) > 0 {
		os.Exit(1)
	}
}

func cmdRollback(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	svc, err := setup(ctx)
	if err != nil {
		fatal(err)
	}
	defer svc.pool.Close()

	result, err := svc.runner.RollbackLast(ctx)
	if err != nil {
		if errors.Is(err, migrate.ErrNothingToRollback) {
			fmt.Println("nothing to roll back")
			return
		}
		fatal(err)
	}

	fmt.Printf("rolled back %s\n", result.RolledBack)
}

func cmdDeploy(args []string) {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	version := fs.String("version", "", "Version being deployed (required)")
	environment := fs.String("env", "production", "Target environment")
	commitHash := fs.String("commit", "", "Commit hash of the build")
	buildTime := fs.String("build-time", "", "Build timestamp, RFC 3339 (optional)")
	deployedBy := fs.String("by", os.Getenv("USER"), "Who triggers the deployment")
	notes := fs.String("notes", "", "Free-form deployment notes")
	fs.Parse(args)

	var buildTimePtr *time.Time
	if *buildTime != "" {
		t, err := time.Parse(time.RFC3339, *buildTime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid -build-time %q: %v\n", *buildTime, err)
			os.Exit(1)
		}
		buildTimePtr = &t
	}

	if *version == "" {
		fmt.Fprintln(os.Stderr, "error: -version is required")
		fmt.Fprintln(os.Stderr, "usage: deployctl deploy -version <version> [-env <env>] [-commit <hash>]")
		os.Exit(1)
	}

	ctx := context.Background()
	svc, err := setup(ctx)
	if err != nil {
		fatal(err)
	}
	defer svc.pool.Close()

	if err := svc.lock.EnsureTable(ctx); err != nil {
		fatal(err)
	}

	appClient := health.NewAppClient(svc.cfg.AppBaseURL)
	checker := health.NewChecker(svc.pool, nil, appClient, svc.logger)

	orch := deploy.NewOrchestrator(svc.ledger, svc.runner, checker, appClient, svc.lock, deploy.Options{
		HealthCheckTimeout:  svc.cfg.HealthCheckTimeout,
		HealthCheckInterval: svc.cfg.HealthCheckInterval,
		RollbackOnFailure:   svc.cfg.RollbackOnFailure,
	}, svc.logger)

	result, err := orch.Deploy(ctx, model.DeploymentConfig{
		Version:     *version,
		Environment: *environment,
		CommitHash:  *commitHash,
		BuildTime:   buildTimePtr,
		DeployedBy:  *deployedBy,
		Notes:       *notes,
	})
	if err != nil {
		fatal(err)
	}

	fmt.Printf("deployment %s: %s\n", result.DeploymentID, result.Status)
	for _, step := range result.Steps {
		fmt.Printf("  [%s] %s", step.Status, step.Name)
		if step.Details != "" {
			fmt.Printf(" - %s", step.Details)
		}
		fmt.Println()
	}
	if result.RollbackVersion != "" {
		fmt.Printf("rolled back to %s\n", result.RollbackVersion)
	}
	if result.Status != model.StatusCompleted {
		os.Exit(1)
	}
}

func cmdForceUnlock(args []string) {
	fs := flag.NewFlagSet("force-unlock", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	svc, err := setup(ctx)
	if err != nil {
		fatal(err)
	}
	defer svc.pool.Close()

	if err := svc.lock.EnsureTable(ctx); err != nil {
		fatal(err)
	}

	cleared, err := svc.lock.ForceUnlock(ctx)
	if err != nil {
		fatal(err)
	}
	if cleared {
		fmt.Println("deployment lock cleared")
	} else {
		fmt.Println("deployment lock was not held")
	}
}

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Maximum number of deployments to list")
	fs.Parse(args)

	ctx := context.Background()
	svc, err := setup(ctx)
	if err != nil {
		fatal(err)
	}
	defer svc.pool.Close()

	records, err := svc.ledger.History(ctx, *limit)
	if err != nil {
		fatal(err)
	}

	if len(records) == 0 {
		fmt.Println("no deployments recorded")
		return
	}

	for _, rec := range records {
		mark := " "
		if rec.HealthCheckPassed {
			mark = "+"
		}
		fmt.Printf("%s  %-11s %s  %-10s %s %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04"), rec.Status, mark,
			rec.Environment, rec.Version, rec.ID)
	}
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	svc, err := setup(ctx)
	if err != nil {
		fatal(err)
	}
	defer svc.pool.Close()

	appClient := health.NewAppClient(svc.cfg.AppBaseURL)
	checker := health.NewChecker(svc.pool, nil, appClient, svc.logger)

	orch := deploy.NewOrchestrator(svc.ledger, svc.runner, checker, appClient, svc.lock, deploy.Options{}, svc.logger)
	status, err := orch.CurrentStatus(ctx)
	if err != nil {
		fatal(err)
	}
	if status == nil {
		fmt.Println("no deployments recorded")
		return
	}

	d := status.Deployment
	fmt.Printf("deployment: %s\n", d.ID)
	fmt.Printf("version:    %s\n", d.Version)
	fmt.Printf("status:     %s\n", d.Status)
	fmt.Printf("health:     %s\n", status.Health.Status)
	for name, svcHealth := range status.Health.Services {
		fmt.Printf("  %-10s %s", name, svcHealth.Status)
		if svcHealth.Message != "" {
			fmt.Printf(" (%s)", svcHealth.Message)
		}
		fmt.Println()
	}
}
