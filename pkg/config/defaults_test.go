package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.DataDir != DefaultDataDir {
					t.Errorf("expected data dir %q, got %q", DefaultDataDir, cfg.DataDir)
				}
				if cfg.Processing.Idle.MaxItemsPerRun != DefaultIdleMaxItemsPerRun {
					t.Errorf("expected max items per run %d, got %d", DefaultIdleMaxItemsPerRun, cfg.Processing.Idle.MaxItemsPerRun)
				}
				if cfg.Processing.Idle.MaxSecondsPerRun != DefaultIdleMaxSecondsPerRun {
					t.Errorf("expected max seconds per run %d, got %d", DefaultIdleMaxSecondsPerRun, cfg.Processing.Idle.MaxSecondsPerRun)
				}
				if cfg.Processing.StateLayer.WindowingMode != DefaultWindowingMode {
					t.Errorf("expected windowing mode %q, got %q", DefaultWindowingMode, cfg.Processing.StateLayer.WindowingMode)
				}
				if cfg.Processing.StateLayer.WindowMs != DefaultWindowMs {
					t.Errorf("expected window ms %d, got %d", DefaultWindowMs, cfg.Processing.StateLayer.WindowMs)
				}
				if cfg.Processing.StateLayer.Index.TopK != DefaultIndexTopK {
					t.Errorf("expected index top_k %d, got %d", DefaultIndexTopK, cfg.Processing.StateLayer.Index.TopK)
				}
				if cfg.Policy.FilePath != DefaultPolicyFilePath {
					t.Errorf("expected policy file path %q, got %q", DefaultPolicyFilePath, cfg.Policy.FilePath)
				}
				if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
					t.Errorf("expected logging level %q, got %q", DefaultLoggingLevel, cfg.Telemetry.Logging.Level)
				}
				if cfg.Telemetry.Logging.Format != DefaultLoggingFormat {
					t.Errorf("expected logging format %q, got %q", DefaultLoggingFormat, cfg.Telemetry.Logging.Format)
				}
				if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
					t.Errorf("expected metrics path %q, got %q", DefaultMetricsPath, cfg.Telemetry.Metrics.Path)
				}
			},
		},
		{
			name: "existing values are preserved",
			input: Config{
				DataDir: "/srv/statetaped",
				Processing: ProcessingConfig{
					Idle: IdleConfig{
						MaxItemsPerRun: 750,
					},
				},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.DataDir != "/srv/statetaped" {
					t.Error("existing data dir was overwritten")
				}
				if cfg.Processing.Idle.MaxItemsPerRun != 750 {
					t.Error("existing max items per run was overwritten")
				}
				// Unset sibling field still gets its default.
				if cfg.Processing.Idle.MaxSecondsPerRun != DefaultIdleMaxSecondsPerRun {
					t.Error("max seconds per run should get default when not set")
				}
			},
		},
		{
			name: "provider defaults applied",
			input: Config{
				Capability: CapabilityConfig{
					OCR: map[string]ProviderConfig{
						"tesseract": {
							BaseURL: "http://127.0.0.1:8090",
							// Timeout and MaxRetries not set
						},
					},
				},
			},
			check: func(t *testing.T, cfg *Config) {
				provider := cfg.Capability.OCR["tesseract"]
				if provider.Timeout != DefaultProviderTimeout {
					t.Errorf("expected provider timeout %v, got %v", DefaultProviderTimeout, provider.Timeout)
				}
				if provider.MaxRetries != DefaultProviderMaxRetries {
					t.Errorf("expected provider max retries %d, got %d", DefaultProviderMaxRetries, provider.MaxRetries)
				}
				if provider.BaseURL != "http://127.0.0.1:8090" {
					t.Error("existing base URL was overwritten")
				}
			},
		},
		{
			name: "retention defaults applied when retention enabled",
			input: Config{
				Processing: ProcessingConfig{
					StateLayer: StateLayerConfig{
						Training: TrainingConfig{
							Retention: RetentionConfig{
								Enabled: true,
							},
						},
					},
				},
			},
			check: func(t *testing.T, cfg *Config) {
				ret := cfg.Processing.StateLayer.Training.Retention
				if ret.MaxActiveModels != DefaultRetentionMaxActive {
					t.Errorf("expected max active models %d, got %d", DefaultRetentionMaxActive, ret.MaxActiveModels)
				}
				if ret.Schedule != DefaultRetentionSchedule {
					t.Errorf("expected schedule %q, got %q", DefaultRetentionSchedule, ret.Schedule)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Config{}

	ApplyDefaults(&cfg)
	firstPass := cfg.DataDir
	firstWindow := cfg.Processing.StateLayer.WindowMs

	ApplyDefaults(&cfg)
	secondPass := cfg.DataDir
	secondWindow := cfg.Processing.StateLayer.WindowMs

	if firstPass != secondPass {
		t.Error("ApplyDefaults should be idempotent for data dir")
	}
	if firstWindow != secondWindow {
		t.Error("ApplyDefaults should be idempotent for window ms")
	}
}

func TestApplyDefaults_ProviderTimeoutNotOverwritten(t *testing.T) {
	cfg := Config{
		Capability: CapabilityConfig{
			VLM: map[string]ProviderConfig{
				"remote": {Timeout: 5 * time.Second},
			},
		},
	}
	ApplyDefaults(&cfg)

	if cfg.Capability.VLM["remote"].Timeout != 5*time.Second {
		t.Error("existing provider timeout was overwritten by default")
	}
}
