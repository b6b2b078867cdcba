package health

import (
	"context"

	"github.com/lettermill/platform/internal/model"
)

// Provider reports aggregate health of dependent services and the
// application's readiness to serve traffic. Both calls are read-only and
// safe to invoke repeatedly.
type Provider interface {
	AggregateHealth(ctx context.Context) (*model.AggregateHealth, error)
	Readiness(ctx context.Context) (*model.Readiness, error)
}

// VersionReporter reports the running application's build identity, used
// by the deployment verification step.
type VersionReporter interface {
	Version(ctx context.Context) (*model.AppVersion, error)
}
