package config

import "time"

// Default values for configuration fields.
const (
	DefaultDataDir = "./data"

	DefaultProviderTimeout    = 30 * time.Second
	DefaultProviderMaxRetries = 2

	DefaultIdleMaxItemsPerRun   = 500
	DefaultIdleMaxSecondsPerRun = 30
	DefaultIdleSchedule         = "*/5 * * * *"
	DefaultExtractorsOCR        = true
	DefaultExtractorsVLM        = false

	DefaultStateLayerEmitFrameEvidence = true
	DefaultStateLayerSegmentFrameIndex = 0
	DefaultWindowingMode               = "fixed_duration"
	DefaultWindowMs                    = int64(5000)
	DefaultMaxEvidenceRefs             = 16

	DefaultBuilderTextWeight   = 1.0
	DefaultBuilderVisionWeight = 0.6
	DefaultBuilderLayoutWeight = 0.4
	DefaultBuilderInputWeight  = 0.2

	DefaultIndexTopK          = 10
	DefaultIndexMinScore      = 0.0
	DefaultIndexMaxCandidates = 200

	DefaultPolicyAllowTextExport = true

	DefaultStateEvidenceMaxHits           = 10
	DefaultStateEvidenceMaxEvidencePerHit = 16
	DefaultStateEvidenceMaxSnippetsPerHit = 4
	DefaultStateEvidenceMaxSnippetChars   = 320

	DefaultTrainingFallbackEnabled = true
	DefaultRetentionMaxActive      = 3
	DefaultRetentionSchedule       = "0 3 * * *"

	DefaultPolicyFilePath          = "./policies.yaml"
	DefaultPolicyWatch             = true
	DefaultPolicyValidationEnabled = true

	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultLoggingBufferSize    = 10000
	DefaultLoggingRedactSensitive = true

	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "statetape"
)

// ApplyDefaults applies default values to a Config struct for any fields
// that have zero values. Idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}

	applyProviderDefaults(cfg.Capability.OCR)
	applyProviderDefaults(cfg.Capability.VLM)
	applyProviderDefaults(cfg.Capability.TextEmbedder)
	applyProviderDefaults(cfg.Capability.Reranker)

	idle := &cfg.Processing.Idle
	if idle.MaxItemsPerRun == 0 {
		idle.MaxItemsPerRun = DefaultIdleMaxItemsPerRun
	}
	if idle.MaxSecondsPerRun == 0 {
		idle.MaxSecondsPerRun = DefaultIdleMaxSecondsPerRun
	}
	if idle.Schedule == "" {
		idle.Schedule = DefaultIdleSchedule
	}

	sl := &cfg.Processing.StateLayer
	if !sl.EmitFrameEvidence {
		sl.EmitFrameEvidence = DefaultStateLayerEmitFrameEvidence
	}
	if sl.WindowingMode == "" {
		sl.WindowingMode = DefaultWindowingMode
	}
	if sl.WindowMs == 0 {
		sl.WindowMs = DefaultWindowMs
	}
	if sl.MaxEvidenceRefs == 0 {
		sl.MaxEvidenceRefs = DefaultMaxEvidenceRefs
	}

	b := &sl.Builder
	if b.TextWeight == 0 {
		b.TextWeight = DefaultBuilderTextWeight
	}
	if b.VisionWeight == 0 {
		b.VisionWeight = DefaultBuilderVisionWeight
	}
	if b.LayoutWeight == 0 {
		b.LayoutWeight = DefaultBuilderLayoutWeight
	}
	if b.InputWeight == 0 {
		b.InputWeight = DefaultBuilderInputWeight
	}

	idx := &sl.Index
	if idx.TopK == 0 {
		idx.TopK = DefaultIndexTopK
	}
	if idx.MaxCandidates == 0 {
		idx.MaxCandidates = DefaultIndexMaxCandidates
	}

	if !sl.Policy.AllowTextExport {
		sl.Policy.AllowTextExport = DefaultPolicyAllowTextExport
	}

	ev := &sl.Evidence
	if ev.MaxHits == 0 {
		ev.MaxHits = DefaultStateEvidenceMaxHits
	}
	if ev.MaxEvidencePerHit == 0 {
		ev.MaxEvidencePerHit = DefaultStateEvidenceMaxEvidencePerHit
	}
	if ev.MaxSnippetsPerHit == 0 {
		ev.MaxSnippetsPerHit = DefaultStateEvidenceMaxSnippetsPerHit
	}
	if ev.MaxSnippetChars == 0 {
		ev.MaxSnippetChars = DefaultStateEvidenceMaxSnippetChars
	}

	if !sl.Training.FallbackEnabled {
		sl.Training.FallbackEnabled = DefaultTrainingFallbackEnabled
	}
	if sl.Training.Retention.MaxActiveModels == 0 {
		sl.Training.Retention.MaxActiveModels = DefaultRetentionMaxActive
	}
	if sl.Training.Retention.Schedule == "" {
		sl.Training.Retention.Schedule = DefaultRetentionSchedule
	}

	if cfg.Policy.FilePath == "" {
		cfg.Policy.FilePath = DefaultPolicyFilePath
	}
	if !cfg.Policy.Watch {
		cfg.Policy.Watch = DefaultPolicyWatch
	}
	if !cfg.Policy.Validation.Enabled {
		cfg.Policy.Validation.Enabled = DefaultPolicyValidationEnabled
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.BufferSize == 0 {
		cfg.Telemetry.Logging.BufferSize = DefaultLoggingBufferSize
	}
	if !cfg.Telemetry.Logging.RedactSensitiveText {
		cfg.Telemetry.Logging.RedactSensitiveText = DefaultLoggingRedactSensitive
	}

	if !cfg.Telemetry.Metrics.Enabled {
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

func applyProviderDefaults(providers map[string]ProviderConfig) {
	for id, p := range providers {
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = DefaultProviderMaxRetries
		}
		providers[id] = p
	}
}
