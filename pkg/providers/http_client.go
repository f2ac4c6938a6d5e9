package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// httpClient is the shared base for HTTP-backed capability providers. It
// provides connection pooling, bounded retries with exponential backoff,
// and health tracking. Concrete adapters (ocr.go, vlm.go, embedder.go)
// embed it and add the request/response shape for their capability.
type httpClient struct {
	cfg    ProviderConfig
	client *http.Client

	healthMu sync.RWMutex
	health   ProviderHealth

	stopHealthCheck    chan struct{}
	healthCheckStopped chan struct{}
}

func newHTTPClient(cfg ProviderConfig) *httpClient {
	cfg = withDefaults(cfg)

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		health: ProviderHealth{
			IsHealthy:             true,
			LastCheck:             time.Now(),
			LastSuccessfulRequest: time.Now(),
		},
		stopHealthCheck:    make(chan struct{}),
		healthCheckStopped: make(chan struct{}),
	}
}

// Name returns the configured provider name.
func (c *httpClient) Name() string { return c.cfg.Name }

// IsHealthy reports the current health status.
func (c *httpClient) IsHealthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health.IsHealthy
}

// Health returns a snapshot of the provider's health.
func (c *httpClient) Health() ProviderHealth {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

func (c *httpClient) updateHealth(success bool, err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.LastCheck = time.Now()
	if success {
		c.health.IsHealthy = true
		c.health.ConsecutiveFailures = 0
		c.health.LastError = nil
		c.health.LastSuccessfulRequest = time.Now()
		return
	}

	c.health.ConsecutiveFailures++
	c.health.LastError = err
	if c.health.ConsecutiveFailures >= 3 {
		c.health.IsHealthy = false
		slog.Warn("capability provider marked unhealthy",
			"provider", c.cfg.Name,
			"consecutive_failures", c.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

func (c *httpClient) recordRequest(success bool) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.health.TotalRequests++
	if !success {
		c.health.FailedRequests++
	}
}

// doRequest performs an HTTP request with bounded retries and exponential
// backoff on transient failures (network errors, 5xx responses). Caller
// owns closing the returned response body.
func (c *httpClient) doRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cfg.APIKey != "" && req.Header.Get("Authorization") == "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.recordRequest(false)
			if ctx.Err() != nil {
				return nil, &TimeoutError{Provider: c.cfg.Name, Timeout: c.cfg.Timeout}
			}
			slog.Warn("capability provider request failed, retrying",
				"provider", c.cfg.Name, "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.recordRequest(true)
			c.updateHealth(true, nil)
			return resp, nil
		}

		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			c.recordRequest(false)
			c.updateHealth(false, fmt.Errorf("authentication failed"))
			return nil, &AuthError{Provider: c.cfg.Name, Message: string(errBody)}
		case http.StatusTooManyRequests:
			c.recordRequest(false)
			return nil, &RateLimitError{
				Provider:   c.cfg.Name,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    string(errBody),
			}
		case http.StatusBadRequest:
			c.recordRequest(false)
			return nil, &ProviderError{Provider: c.cfg.Name, StatusCode: resp.StatusCode, Message: string(errBody)}
		default:
			lastErr = &ProviderError{Provider: c.cfg.Name, StatusCode: resp.StatusCode, Message: string(errBody)}
			c.recordRequest(false)
			slog.Warn("capability provider returned error status, retrying",
				"provider", c.cfg.Name, "status", resp.StatusCode, "attempt", attempt+1)
		}
	}

	c.updateHealth(false, lastErr)
	return nil, lastErr
}

// doJSON marshals reqBody (if non-nil), performs the request, and decodes
// the response into respBody (if non-nil).
func (c *httpClient) doJSON(ctx context.Context, method, url string, reqBody, respBody any, headers map[string]string) error {
	var bodyBytes []byte
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyBytes = b
	}

	resp, err := c.doRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{Provider: c.cfg.Name, Cause: fmt.Errorf("read response: %w", err)}
	}

	if respBody != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return &ParseError{Provider: c.cfg.Name, RawResponse: string(raw), Cause: fmt.Errorf("unmarshal response: %w", err)}
		}
	}
	return nil
}

// Close stops the health checker and closes idle connections.
func (c *httpClient) Close() error {
	close(c.stopHealthCheck)
	select {
	case <-c.healthCheckStopped:
	case <-time.After(5 * time.Second):
		slog.Warn("capability provider health checker did not stop in time", "provider", c.cfg.Name)
	}
	c.client.CloseIdleConnections()
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
