package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lettermill/platform/internal/db"
	"github.com/lettermill/platform/internal/model"
)

// Checker is the concrete health status provider: it probes the platform
// database, the valkey cache and the application itself. Database and
// cache are the critical services that gate a deployment.
type Checker struct {
	db     db.DB
	cache  *redis.Client
	app    *AppClient
	logger zerolog.Logger
}

// NewChecker builds a Checker. cache may be nil when no cache is
// configured; the cache check is then omitted from reports.
func NewChecker(database db.DB, cache *redis.Client, app *AppClient, logger zerolog.Logger) *Checker {
	return &Checker{db: database, cache: cache, app: app, logger: logger}
}

func (c *Checker) checkDatabase(ctx context.Context) model.ServiceHealth {
	start := time.Now()
	var one int
	err := c.db.QueryRow(ctx, "SELECT 1").Scan(&one)
	return serviceHealth(err, true, time.Since(start))
}

func (c *Checker) checkCache(ctx context.Context) model.ServiceHealth {
	start := time.Now()
	err := c.cache.Ping(ctx).Err()
	return serviceHealth(err, true, time.Since(start))
}

func (c *Checker) checkApp(ctx context.Context) model.ServiceHealth {
	start := time.Now()
	err := c.app.Ping(ctx)
	return serviceHealth(err, false, time.Since(start))
}

func serviceHealth(err error, critical bool, latency time.Duration) model.ServiceHealth {
	h := model.ServiceHealth{
		Status:    model.HealthHealthy,
		Critical:  critical,
		LatencyMs: latency.Milliseconds(),
	}
	if err != nil {
		h.Status = model.HealthUnhealthy
		h.Message = err.Error()
	}
	return h
}

// AggregateHealth probes every dependent service concurrently and combines
// the results. The aggregate is unhealthy if any service is unhealthy.
func (c *Checker) AggregateHealth(ctx context.Context) (*model.AggregateHealth, error) {
	probes := map[string]func(context.Context) model.ServiceHealth{
		"database": c.checkDatabase,
	}
	if c.cache != nil {
		probes["cache"] = c.checkCache
	}
	if c.app != nil {
		probes["app"] = c.checkApp
	}

	var mu sync.Mutex
	services := make(map[string]model.ServiceHealth, len(probes))
	g, ctx := errgroup.WithContext(ctx)

	for name, probe := range probes {
		g.Go(func() error {
			h := probe(ctx)
			mu.Lock()
			services[name] = h
			mu.Unlock()
			return nil
		})
	}

	// probes report failure in their ServiceHealth, never as an error
	g.Wait()

	aggregate := &model.AggregateHealth{Status: model.HealthHealthy, Services: services}
	for name, svc := range services {
		if svc.Status != model.HealthHealthy {
			aggregate.Status = model.HealthUnhealthy
			c.logger.Warn().Str("check", name).Str("message", svc.Message).Msg("service unhealthy")
		}
	}
	return aggregate, nil
}

// Readiness combines the application's own readiness signal with the
// critical service probes.
func (c *Checker) Readiness(ctx context.Context) (*model.Readiness, error) {
	readiness := &model.Readiness{Ready: true, Services: map[string]model.ServiceHealth{}}

	dbHealth := c.checkDatabase(ctx)
	readiness.Services["database"] = dbHealth
	if dbHealth.Status != model.HealthHealthy {
		readiness.Ready = false
		readiness.Issues = append(readiness.Issues, fmt.Sprintf("database: %s", dbHealth.Message))
	}

	if c.cache != nil {
		cacheHealth := c.checkCache(ctx)
		readiness.Services["cache"] = cacheHealth
		if cacheHealth.Status != model.HealthHealthy {
			readiness.Ready = false
			readiness.Issues = append(readiness.Issues, fmt.Sprintf("cache: %s", cacheHealth.Message))
		}
	}

	if c.app != nil {
		appReadiness, err := c.app.Readiness(ctx)
		if err != nil {
			readiness.Ready = false
			readiness.Issues = append(readiness.Issues, fmt.Sprintf("app: %s", err))
		} else if !appReadiness.Ready {
			readiness.Ready = false
			readiness.Issues = append(readiness.Issues, appReadiness.Issues...)
		}
	}

	return readiness, nil
}
