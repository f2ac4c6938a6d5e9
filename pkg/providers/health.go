package providers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// StartHealthChecker starts a background goroutine that periodically
// checks the provider's reachability and updates its health status. It
// runs until ctx is cancelled or Close is called.
func (c *httpClient) StartHealthChecker(ctx context.Context) {
	go c.runHealthChecker(ctx)
}

func (c *httpClient) runHealthChecker(ctx context.Context) {
	defer close(c.healthCheckStopped)

	interval := c.cfg.HealthCheckInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.performHealthCheck(ctx)
			if !c.IsHealthy() {
				ticker.Reset(calculateBackoff(c.Health().ConsecutiveFailures, interval))
			} else {
				ticker.Reset(interval)
			}
		}
	}
}

func (c *httpClient) performHealthCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.healthCheck(checkCtx)
	if err != nil {
		c.updateHealth(false, err)
		slog.Error("capability provider health check failed", "provider", c.cfg.Name, "error", err)
		return
	}

	prev := c.Health().ConsecutiveFailures
	c.updateHealth(true, nil)
	if prev > 0 {
		slog.Info("capability provider recovered", "provider", c.cfg.Name)
	}
}

// healthCheck performs a lightweight GET against the provider's base URL
// to verify it is reachable.
func (c *httpClient) healthCheck(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, c.cfg.BaseURL, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func calculateBackoff(consecutiveFailures int, base time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return base
	}
	multiplier := 1 << uint(consecutiveFailures)
	if multiplier > 10 {
		multiplier = 10
	}
	backoff := base * time.Duration(multiplier)
	if max := 5 * time.Minute; backoff > max {
		backoff = max
	}
	return backoff
}
