package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	migrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "migrations_total",
		Help: "Schema migrations attempted, by result",
	}, []string{"result"})

	migrationBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "migration_batch_duration_seconds",
		Help:    "Duration of one RunPending batch",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	deploymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployments_total",
		Help: "Deployment pipeline runs, by terminal status",
	}, []string{"status"})

	deploymentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deployment_duration_seconds",
		Help:    "Duration of one deployment pipeline run",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	})
)

// RegisterDeployMetrics registers the migration and deployment collectors.
// Call once per process before serving /metrics.
func RegisterDeployMetrics() {
	prometheus.MustRegister(migrationsTotal, migrationBatchDuration, deploymentsTotal, deploymentDuration)
}

// ObserveMigrationBatch records the outcome of one RunPending batch.
func ObserveMigrationBatch(applied, failed int, total time.Duration) {
	migrationsTotal.WithLabelValues("success").Add(float64(applied))
	migrationsTotal.WithLabelValues("failure").Add(float64(failed))
	migrationBatchDuration.Observe(total.Seconds())
}

// ObserveDeployment records one finished deployment pipeline run.
func ObserveDeployment(status string, total time.Duration) {
	deploymentsTotal.WithLabelValues(status).Inc()
	deploymentDuration.Observe(total.Seconds())
}
