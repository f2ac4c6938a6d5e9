package config

import (
	"os"
	"path/filepath"
	"testing"
)

// BenchmarkLoadConfig benchmarks loading a typical configuration file.
// Target: <10ms p99 latency
func BenchmarkLoadConfig(b *testing.B) {
	tmpDir := b.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
data_dir: "/var/lib/statetaped"

capability:
  ocr:
    tesseract:
      timeout: "30s"
      max_retries: 3
  vlm:
    local-vlm:
      base_url: "http://127.0.0.1:8081"
      timeout: "60s"
      max_retries: 2

processing:
  idle:
    max_items_per_run: 500
    max_seconds_per_run: 30
    extractors:
      ocr: true
      vlm: false
  state_layer:
    enabled: true
    windowing_mode: "fixed_duration"
    window_ms: 5000
    max_evidence_refs: 16
    index:
      top_k: 10
      min_score: 0.0
      max_candidates: 200
    evidence:
      max_hits: 10
      max_evidence_per_hit: 16
      max_snippets_per_hit: 4
      max_snippet_chars: 320

policy:
  file_path: "./policies.yaml"
  watch: false
  validation:
    enabled: true
    strict: false

telemetry:
  logging:
    level: "info"
    format: "json"
  metrics:
    enabled: true
    path: "/metrics"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		b.Fatalf("failed to write config file: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := LoadConfig(configPath)
		if err != nil {
			b.Fatalf("failed to load config: %v", err)
		}
	}
}

// BenchmarkLoadConfigWithEnvOverrides benchmarks loading with environment
// variable overrides.
func BenchmarkLoadConfigWithEnvOverrides(b *testing.B) {
	tmpDir := b.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
data_dir: "./data"

telemetry:
  logging:
    level: "info"
    format: "json"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		b.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv("STATETAPED_DATA_DIR", "/override/data")
	os.Setenv("STATETAPED_TELEMETRY_LOGGING_LEVEL", "debug")
	defer func() {
		os.Unsetenv("STATETAPED_DATA_DIR")
		os.Unsetenv("STATETAPED_TELEMETRY_LOGGING_LEVEL")
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := LoadConfigWithEnvOverrides(configPath)
		if err != nil {
			b.Fatalf("failed to load config: %v", err)
		}
	}
}

// BenchmarkValidate benchmarks configuration validation.
// Target: <1ms for full validation
func BenchmarkValidate(b *testing.B) {
	cfg := NewTestConfig().Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := Validate(cfg)
		if err != nil {
			b.Fatalf("validation failed: %v", err)
		}
	}
}

// BenchmarkApplyDefaults benchmarks applying default values.
func BenchmarkApplyDefaults(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg := Config{}
		ApplyDefaults(&cfg)
	}
}

// BenchmarkGetConfig benchmarks singleton config access.
// Target: <1µs (simple pointer return)
func BenchmarkGetConfig(b *testing.B) {
	SetConfig(MinimalConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GetConfig()
	}
}

// BenchmarkConfigBuilder benchmarks building config programmatically.
func BenchmarkConfigBuilder(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NewTestConfig().
			WithDataDir("/var/lib/statetaped").
			WithPolicyFilePath("./policies.yaml").
			WithLoggingLevel("debug").
			Build()
	}
}
