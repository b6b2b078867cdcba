package health

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lettermill/platform/internal/model"
)

// AppClient talks to the platform application's health and version
// endpoints over HTTP.
type AppClient struct {
	client *resty.Client
}

func NewAppClient(baseURL string) *AppClient {
	return &AppClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second),
	}
}

// Ping checks the application's liveness endpoint.
func (c *AppClient) Ping(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return fmt.Errorf("app health request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("app health returned %s", resp.Status())
	}
	return nil
}

// Readiness fetches the application's readiness signal.
func (c *AppClient) Readiness(ctx context.Context) (*model.Readiness, error) {
	var readiness model.Readiness
	resp, err := c.client.R().SetContext(ctx).SetResult(&readiness).Get("/api/health/ready")
	if err != nil {
		return nil, fmt.Errorf("app readiness request: %w", err)
	}
	if resp.IsError() {
		// A 503 from the readiness endpoint is a valid "not ready"
		// answer, not a transport failure.
		return &model.Readiness{Ready: false, Issues: []string{fmt.Sprintf("readiness returned %s", resp.Status())}}, nil
	}
	return &readiness, nil
}

// Version fetches the application's self-reported build identity.
func (c *AppClient) Version(ctx context.Context) (*model.AppVersion, error) {
	var version model.AppVersion
	resp, err := c.client.R().SetContext(ctx).SetResult(&version).Get("/api/version")
	if err != nil {
		return nil, fmt.Errorf("app version request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("app version returned %s", resp.Status())
	}
	return &version, nil
}
