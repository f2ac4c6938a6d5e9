package config

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for
// testing. The resulting configuration is valid and can be used
// immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{
		Capability: CapabilityConfig{
			OCR:          make(map[string]ProviderConfig),
			VLM:          make(map[string]ProviderConfig),
			TextEmbedder: make(map[string]ProviderConfig),
			Reranker:     make(map[string]ProviderConfig),
		},
	}
	ApplyDefaults(&cfg)

	cfg.Capability.OCR["tesseract"] = ProviderConfig{
		Timeout:    DefaultProviderTimeout,
		MaxRetries: DefaultProviderMaxRetries,
	}
	cfg.Capability.TextEmbedder["local"] = ProviderConfig{
		Timeout:    DefaultProviderTimeout,
		MaxRetries: DefaultProviderMaxRetries,
	}

	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithDataDir sets the data directory.
func (b *ConfigBuilder) WithDataDir(dir string) *ConfigBuilder {
	b.cfg.DataDir = dir
	return b
}

// WithProvider registers a provider under the given capability kind
// ("ocr", "vlm", "text_embedder", "reranker").
func (b *ConfigBuilder) WithProvider(kind, name string, provider ProviderConfig) *ConfigBuilder {
	var m map[string]ProviderConfig
	switch kind {
	case "ocr":
		m = b.cfg.Capability.OCR
	case "vlm":
		m = b.cfg.Capability.VLM
	case "text_embedder":
		m = b.cfg.Capability.TextEmbedder
	case "reranker":
		m = b.cfg.Capability.Reranker
	default:
		return b
	}
	m[name] = provider
	return b
}

// WithIdleBudget sets the idle-processor item and time budgets.
func (b *ConfigBuilder) WithIdleBudget(maxItems, maxSeconds int) *ConfigBuilder {
	b.cfg.Processing.Idle.MaxItemsPerRun = maxItems
	b.cfg.Processing.Idle.MaxSecondsPerRun = maxSeconds
	return b
}

// WithStateLayerEnabled enables or disables the state-tape processor.
func (b *ConfigBuilder) WithStateLayerEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Processing.StateLayer.Enabled = enabled
	return b
}

// WithWindowing sets the state-layer windowing mode and window length.
func (b *ConfigBuilder) WithWindowing(mode string, windowMs int64) *ConfigBuilder {
	b.cfg.Processing.StateLayer.WindowingMode = mode
	b.cfg.Processing.StateLayer.WindowMs = windowMs
	return b
}

// WithTrainingEnabled toggles the learned-encoder feature flag.
func (b *ConfigBuilder) WithTrainingEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Processing.StateLayer.Features.TrainingEnabled = enabled
	return b
}

// WithRetention configures jepa model archival.
func (b *ConfigBuilder) WithRetention(enabled bool, maxActive int, schedule string) *ConfigBuilder {
	b.cfg.Processing.StateLayer.Training.Retention.Enabled = enabled
	b.cfg.Processing.StateLayer.Training.Retention.MaxActiveModels = maxActive
	b.cfg.Processing.StateLayer.Training.Retention.Schedule = schedule
	return b
}

// WithPolicyFilePath sets the policy file path.
func (b *ConfigBuilder) WithPolicyFilePath(path string) *ConfigBuilder {
	b.cfg.Policy.FilePath = path
	return b
}

// WithPolicyWatch enables or disables policy file watching.
func (b *ConfigBuilder) WithPolicyWatch(watch bool) *ConfigBuilder {
	b.cfg.Policy.Watch = watch
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithLoggingFormat sets the logging format.
func (b *ConfigBuilder) WithLoggingFormat(format string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Format = format
	return b
}

// WithMetricsEnabled sets whether the metrics endpoint is served.
func (b *ConfigBuilder) WithMetricsEnabled(enabled bool) *ConfigBuilder {
	b.cfg.Telemetry.Metrics.Enabled = enabled
	return b
}

// WithMetricsListenAddress sets the metrics endpoint's loopback address.
func (b *ConfigBuilder) WithMetricsListenAddress(addr string) *ConfigBuilder {
	b.cfg.Telemetry.Metrics.ListenAddress = addr
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
// This is useful for tests that don't care about most configuration values.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
