package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lettermill/platform/internal/api"
	"github.com/lettermill/platform/internal/config"
	"github.com/lettermill/platform/internal/db"
	"github.com/lettermill/platform/internal/deploy"
	"github.com/lettermill/platform/internal/health"
	"github.com/lettermill/platform/internal/logging"
	"github.com/lettermill/platform/internal/metrics"
	"github.com/lettermill/platform/internal/migrate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("deploy-agent"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	metrics.RegisterDeployMetrics()
	metrics.RegisterPgxPoolMetrics(pool)

	var cache *redis.Client
	if cfg.ValkeyAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.ValkeyAddr})
		defer cache.Close()
	}

	appClient := health.NewAppClient(cfg.AppBaseURL)
	checker := health.NewChecker(pool, cache, appClient, logger)

	store := migrate.NewStore(cfg.MigrationsDir, pool)
	runner := migrate.NewRunner(pool, store, logger)
	runner.MigrationTimeout = cfg.MigrationTimeout
	if err := runner.InitTracking(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize migration tracking")
	}

	ledger := deploy.NewLedgerService(pool)
	lock := deploy.NewLock(pool)
	if err := lock.EnsureTable(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize deployment lock")
	}

	orch := deploy.NewOrchestrator(ledger, runner, checker, appClient, lock, deploy.Options{
		HealthCheckTimeout:  cfg.HealthCheckTimeout,
		HealthCheckInterval: cfg.HealthCheckInterval,
		RollbackOnFailure:   cfg.RollbackOnFailure,
	}, logger)

	srv := api.NewServer(logger, checker, orch, ledger, runner)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // deployments run synchronously
		IdleTimeout:  60 * time.Second,
	}

	metricsServer := metrics.NewServer(cfg.MetricsListenAddr)

	go func() {
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting deploy agent server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
}
