package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL   string
	MigrationsDir string
	Environment   string
	// AppBaseURL is the platform application's base URL, used for
	// readiness polling and version verification after a deploy.
	AppBaseURL string
	ValkeyAddr string

	HealthCheckTimeout  time.Duration
	HealthCheckInterval time.Duration
	// MigrationTimeout bounds a single migration's execution. Zero
	// means no deadline; long-running DDL is normal.
	MigrationTimeout  time.Duration
	RollbackOnFailure bool

	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "migrations"),
		Environment:         getEnv("ENVIRONMENT", "development"),
		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:3000"),
		ValkeyAddr:          getEnv("VALKEY_ADDR", ""),
		HealthCheckTimeout:  getEnvDurationMs("HEALTH_CHECK_TIMEOUT_MS", 60000),
		HealthCheckInterval: getEnvDurationMs("HEALTH_CHECK_INTERVAL_MS", 5000),
		MigrationTimeout:    getEnvDurationMs("MIGRATION_TIMEOUT_MS", 0),
		RollbackOnFailure:   getEnvBool("ROLLBACK_ON_FAILURE", true),
		HTTPListenAddr:      getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:   getEnv("METRICS_LISTEN_ADDR", ":9100"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ServiceName:         getEnv("SERVICE_NAME", ""),
	}

	if cfg.HealthCheckInterval <= 0 {
		return nil, fmt.Errorf("HEALTH_CHECK_INTERVAL_MS must be positive")
	}

	return cfg, nil
}

// Validate checks that the fields required for the given role are set.
func (c *Config) Validate(role string) error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.MigrationsDir == "" {
		missing = append(missing, "MIGRATIONS_DIR")
	}
	switch role {
	case "deploy-agent":
		if c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
		if c.AppBaseURL == "" {
			missing = append(missing, "APP_BASE_URL")
		}
	case "deployctl":
		// CLI needs only the database and migrations dir for most
		// subcommands; deploy additionally needs the app URL.
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDurationMs(key string, fallbackMs int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(fallbackMs) * time.Millisecond
}
