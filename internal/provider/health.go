package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HealthChecker reports backend reachability without consuming tokens.
// Implementations must be safe to call from multiple goroutines.
type HealthChecker interface {
	// HealthCheck returns nil when the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// NewHealthCheck returns a zero-cost HealthChecker for the configured backend,
// or nil when the backend has no cheap probe endpoint. Callers must nil-check.
func NewHealthCheck(cfg *Config) HealthChecker {
	switch cfg.Backend {
	case BackendOllama:
		host := cfg.Ollama.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		// /api/tags lists installed models — cheap and unauthenticated.
		return &httpHealthCheck{url: host + "/api/tags", name: "ollama"}
	default:
		return nil
	}
}

// httpHealthCheck probes a single HTTP endpoint and expects a 2xx response.
type httpHealthCheck struct {
	// url is the probe endpoint.
	url string
	// name identifies the backend in error messages.
	name string
}

// HealthCheck issues a GET against the probe endpoint.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", h.name, err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: unreachable: %w", h.name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", h.name, resp.StatusCode)
	}
	return nil
}
