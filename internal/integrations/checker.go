// Package integrations health-checks the external systems (Jira,
// AppDynamics, Grafana, Splunk, ...) a validation run is configured with.
package integrations

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"compliance-hub/backend/pkg/models"
)

// Result is the outcome of one integration health check.
type Result struct {
	Status  string            `json:"status"` // "success" or "failed"
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// OK reports whether the check succeeded.
func (r Result) OK() bool { return r.Status == "success" }

// Checker verifies connectivity to one configured integration.
type Checker interface {
	Check(ctx context.Context, name string, cfg models.IntegrationConfig) Result
}

// HTTPChecker probes an integration's base URL with a bounded GET request.
// Any 2xx or 3xx response counts as reachable.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker creates an HTTPChecker.
func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check performs the connectivity probe.
func (c *HTTPChecker) Check(ctx context.Context, name string, cfg models.IntegrationConfig) Result {
	if cfg.BaseURL == "" {
		return Result{
			Status:  "failed",
			Message: fmt.Sprintf("No base URL configured for %s", name),
			Details: map[string]string{"connection": "not attempted"},
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL, nil)
	if err != nil {
		return Result{
			Status:  "failed",
			Message: fmt.Sprintf("Invalid base URL for %s: %v", name, err),
			Details: map[string]string{"connection": "not attempted"},
		}
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{
			Status:  "failed",
			Message: fmt.Sprintf("Failed to connect to %s", name),
			Details: map[string]string{"connection": "failed", "error": err.Error()},
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		auth := "unknown"
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			auth = "invalid credentials"
		}
		return Result{
			Status:  "failed",
			Message: fmt.Sprintf("Failed to connect to %s", name),
			Details: map[string]string{"connection": "failed", "auth": auth, "http_status": fmt.Sprintf("%d", resp.StatusCode)},
		}
	}

	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Successfully connected to %s", name),
		Details: map[string]string{"connection": "valid", "auth": "successful"},
	}
}
