package providers

import "time"

// ProviderConfig configures one HTTP-backed capability provider instance.
type ProviderConfig struct {
	// Name identifies this provider instance in logs, metrics, and the
	// capability registry (e.g. "tesseract-local", "ollama-vlm").
	Name string

	// BaseURL is the provider's HTTP endpoint.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty. Most local
	// model-serving processes don't require one.
	APIKey string

	// Timeout bounds a single request.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the first failed
	// attempt, for transient errors (5xx, connection failures).
	MaxRetries int

	// HealthCheckInterval is how often StartHealthChecker polls the
	// provider. Zero selects 30 seconds. Periodic checks run only after
	// StartHealthChecker is called.
	HealthCheckInterval time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost bound the connection pool.
	// Zero falls back to sane defaults for a single local provider.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// ProviderHealth tracks a provider's recent request and health-check
// history.
type ProviderHealth struct {
	IsHealthy             bool
	LastCheck             time.Time
	LastError             error
	ConsecutiveFailures   int
	LastSuccessfulRequest time.Time
	TotalRequests         int64
	FailedRequests        int64
}

func withDefaults(cfg ProviderConfig) ProviderConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 4
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	return cfg
}
