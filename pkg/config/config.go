package config

import "time"

// Config is the root configuration structure for the state-tape daemon.
// It contains all configuration sections for capability providers, idle
// and state-layer processing, policy, evidence storage layout, and
// telemetry.
type Config struct {
	// DataDir is the root directory under which every on-disk store lives:
	// media blobs, the metadata KV store, the state-tape database, and
	// jepa model artifacts. Subdirectory layout matches each owning
	// package's convention (e.g. pkg/jepa.NewStore derives
	// DataDir/state/models/jepa).
	// Default: "./data"
	DataDir string `yaml:"data_dir"`

	// Capability contains provider registrations for OCR, VLM, text
	// embedding, and reranking. Keys within each map are provider ids.
	Capability CapabilityConfig `yaml:"capability"`

	// Processing contains configuration for the idle processor and the
	// state-layer pipeline (windowing, pooling, indexing, policy,
	// evidence limits, and the optional learned encoder).
	Processing ProcessingConfig `yaml:"processing"`

	// Policy contains configuration for the policy engine governing
	// state-layer query access.
	Policy PolicyConfig `yaml:"policy"`

	// Telemetry contains configuration for structured logging and the
	// Prometheus metrics endpoint.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CapabilityConfig registers the providers available for each capability
// kind. A capability with zero registered providers is treated as absent
// (CapabilityMissing), not an error.
type CapabilityConfig struct {
	OCR          map[string]ProviderConfig `yaml:"ocr"`
	VLM          map[string]ProviderConfig `yaml:"vlm"`
	TextEmbedder map[string]ProviderConfig `yaml:"text_embedder"`
	Reranker     map[string]ProviderConfig `yaml:"reranker"`
}

// ProviderConfig contains configuration for a single capability provider.
type ProviderConfig struct {
	// BaseURL is the provider's API endpoint. Empty for in-process
	// providers that need no network address.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates to the provider. Typically loaded from an
	// environment variable override rather than committed to file.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single provider call.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for a failed call.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`
}

// ProcessingConfig groups the budget configuration keys under
// processing.idle.* and processing.state_layer.*.
type ProcessingConfig struct {
	Idle       IdleConfig       `yaml:"idle"`
	SST        SSTConfig        `yaml:"sst"`
	StateLayer StateLayerConfig `yaml:"state_layer"`
}

// IdleConfig controls one idle-processor sweep's budget and extractors.
type IdleConfig struct {
	// MaxItemsPerRun caps how many evidence records a single step
	// processes before yielding.
	// Default: 500
	MaxItemsPerRun int `yaml:"max_items_per_run"`

	// MaxSecondsPerRun is the wall-clock ceiling for a single step.
	// Default: 30
	MaxSecondsPerRun int `yaml:"max_seconds_per_run"`

	// Schedule is the cron expression on which the daemon fires an idle
	// sweep across every discovered run.
	// Default: "*/5 * * * *"
	Schedule string `yaml:"schedule"`

	Extractors ExtractorsConfig `yaml:"extractors"`
}

// ExtractorsConfig enables or disables individual derivation extractors.
type ExtractorsConfig struct {
	// OCR enables text extraction from captured frames.
	// Default: true
	OCR bool `yaml:"ocr"`

	// VLM enables vision-language-model description of captured frames.
	// Default: false
	VLM bool `yaml:"vlm"`
}

// SSTConfig gates the heavier structured-state-tracking pipeline.
type SSTConfig struct {
	// Enabled routes derived text through the SST pipeline when a
	// provider is present.
	// Default: false
	Enabled bool `yaml:"enabled"`
}

// StateLayerConfig configures the state-tape processor: windowing,
// pooling, indexing, policy, evidence limits, and the learned encoder.
type StateLayerConfig struct {
	// Enabled gates the state-tape processor entirely.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// EmitFrameEvidence requires a materialized frame record for
	// segment-derived frames before a span may cite it.
	// Default: true
	EmitFrameEvidence bool `yaml:"emit_frame_evidence"`

	// SegmentFrameIndex selects which frame within a segment backs a
	// segment-derived frame record.
	// Default: 0
	SegmentFrameIndex int `yaml:"segment_frame_index"`

	// WindowingMode selects how states are grouped into spans.
	// Options: "fixed_duration", "heuristic_app_window_change"
	// Default: "fixed_duration"
	WindowingMode string `yaml:"windowing_mode"`

	// WindowMs is the window length in milliseconds for fixed-duration
	// windowing.
	// Default: 5000
	WindowMs int64 `yaml:"window_ms"`

	// MaxEvidenceRefs caps evidence references attached to one span.
	// Default: 16
	MaxEvidenceRefs int `yaml:"max_evidence_refs"`

	Builder  BuilderWeightsConfig `yaml:"builder"`
	Index    IndexConfig          `yaml:"index"`
	Policy   StatePolicyConfig    `yaml:"policy"`
	Evidence StateEvidenceConfig  `yaml:"evidence"`
	Features FeaturesConfig       `yaml:"features"`
	Training TrainingConfig       `yaml:"training"`
}

// BuilderWeightsConfig weights each modality's pooled vector before they
// are summed into a per-state merged vector.
type BuilderWeightsConfig struct {
	// Default: 1.0
	TextWeight float64 `yaml:"text_weight"`
	// Default: 0.6
	VisionWeight float64 `yaml:"vision_weight"`
	// Default: 0.4
	LayoutWeight float64 `yaml:"layout_weight"`
	// Default: 0.2
	InputWeight float64 `yaml:"input_weight"`
}

// IndexConfig tunes vector-index search and its linear-scan fallback.
type IndexConfig struct {
	// TopK is the number of hits a search returns.
	// Default: 10
	TopK int `yaml:"top_k"`

	// MinScore filters out hits below this cosine-similarity score.
	// Default: 0
	MinScore float64 `yaml:"min_score"`

	// MaxCandidates bounds the linear-scan fallback when the sign-bucket
	// index has no hits.
	// Default: 200
	MaxCandidates int `yaml:"max_candidates"`
}

// StatePolicyConfig controls what a state-layer query may see.
type StatePolicyConfig struct {
	// AllowRawMedia permits returning raw frame bytes in evidence.
	// Default: false
	AllowRawMedia bool `yaml:"allow_raw_media"`

	// AllowTextExport permits returning extracted text verbatim.
	// Default: true
	AllowTextExport bool `yaml:"allow_text_export"`

	// RedactText applies text redaction even when export is allowed.
	// Default: false
	RedactText bool `yaml:"redact_text"`

	// AppAllowlist, when non-empty, restricts queries to these app ids.
	AppAllowlist []string `yaml:"app_allowlist"`

	// AppDenylist excludes these app ids from queries. It is consulted
	// only when AppAllowlist is empty.
	AppDenylist []string `yaml:"app_denylist"`
}

// StateEvidenceConfig bounds the evidence attached to a query response.
type StateEvidenceConfig struct {
	// Default: 10
	MaxHits int `yaml:"max_hits"`
	// Default: 16
	MaxEvidencePerHit int `yaml:"max_evidence_per_hit"`
	// Default: 4
	MaxSnippetsPerHit int `yaml:"max_snippets_per_hit"`
	// Default: 320
	MaxSnippetChars int `yaml:"max_snippet_chars"`
}

// FeaturesConfig toggles optional state-layer features.
type FeaturesConfig struct {
	// TrainingEnabled gates whether the learned encoder is trained and
	// loaded at all; when false, the builder always uses sign-projection.
	// Default: false
	TrainingEnabled bool `yaml:"training_enabled"`
}

// TrainingConfig configures the optional learned encoder (pkg/jepa).
type TrainingConfig struct {
	// FallbackEnabled turns on retrieval's model-version fallback tier:
	// when a query finds no hits, it searches again with a sign-projected
	// query and keeps only spans built under a model version other than
	// the current one. A trained encoder that fails the load gate is
	// replaced by sign-projection whatever this is set to.
	// Default: true
	FallbackEnabled bool `yaml:"fallback_enabled"`

	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig configures jepa model archival.
type RetentionConfig struct {
	// Default: false
	Enabled bool `yaml:"enabled"`
	// Default: 3
	MaxActiveModels int `yaml:"max_active_models"`
	// Default: false
	ArchiveUnapproved bool `yaml:"archive_unapproved"`
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
	// ArchiveDir overrides the default DataDir/state/models/jepa_archive
	// location when non-empty.
	ArchiveDir string `yaml:"archive_dir"`
}

// PolicyConfig contains configuration for the policy engine.
type PolicyConfig struct {
	// FilePath is the path to the policy file. Validate requires it; no
	// package outside config reads the file.
	// Default: "./policies.yaml"
	FilePath string `yaml:"file_path"`

	// Watch is the policy-file watch flag. It is loaded and defaulted
	// here; no package watches or reloads the policy file.
	// Default: true
	Watch bool `yaml:"watch"`

	Validation PolicyValidationConfig `yaml:"validation"`
}

// PolicyValidationConfig contains configuration for policy validation.
type PolicyValidationConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`
	// Default: false
	Strict bool `yaml:"strict"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactSensitiveText enables automatic redaction of captured screen
	// text (emails, credentials, card numbers) from log fields.
	// Default: true
	RedactSensitiveText bool `yaml:"redact_sensitive_text"`

	// BufferSize is the logger's buffer capacity. Log records are written
	// synchronously; no records are queued in this buffer.
	// Default: 10000
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig contains metrics collection configuration. The metrics
// endpoint is loopback-only, consistent with the no-remote-streaming
// non-goal: it serves local operators, not a remote collector.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the loopback address the metrics endpoint binds.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "statetape"
	Namespace string `yaml:"namespace"`
}
