package model

// Service health status constants.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

// ServiceHealth is one dependent service's health report.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	// Critical services (database, cache) fail the pre-deployment
	// health gate when unhealthy; non-critical ones are reported only.
	Critical  bool  `json:"critical"`
	LatencyMs int64 `json:"latency_ms"`
}

// AggregateHealth is the combined health of all dependent services.
type AggregateHealth struct {
	Status   string                   `json:"status"`
	Services map[string]ServiceHealth `json:"services"`
}

// Readiness is the traffic-serving readiness signal polled after a deploy.
type Readiness struct {
	Ready    bool                     `json:"ready"`
	Services map[string]ServiceHealth `json:"services,omitempty"`
	Issues   []string                 `json:"issues,omitempty"`
}

// AppVersion is the running application's self-reported build identity,
// used by the deployment verification step.
type AppVersion struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash,omitempty"`
}
