package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPgxPoolMetrics exposes connection pool statistics as gauges so
// deployment stalls caused by pool exhaustion show up next to the pipeline
// metrics.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	gauges := map[string]struct {
		help string
		stat func(*pgxpool.Stat) int32
	}{
		"platform_pgxpool_acquired_conns": {
			help: "Connections currently acquired from the pool",
			stat: func(s *pgxpool.Stat) int32 { return s.AcquiredConns() },
		},
		"platform_pgxpool_idle_conns": {
			help: "Idle connections in the pool",
			stat: func(s *pgxpool.Stat) int32 { return s.IdleConns() },
		},
		"platform_pgxpool_total_conns": {
			help: "Total connections held by the pool",
			stat: func(s *pgxpool.Stat) int32 { return s.TotalConns() },
		},
		"platform_pgxpool_max_conns": {
			help: "Configured pool connection ceiling",
			stat: func(s *pgxpool.Stat) int32 { return s.MaxConns() },
		},
	}

	for name, g := range gauges {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: g.help},
			func() float64 { return float64(g.stat(pool.Stat())) },
		))
	}
}
