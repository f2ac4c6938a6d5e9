package config

import (
	"testing"
	"time"
)

func TestNewTestConfig(t *testing.T) {
	cfg := NewTestConfig().Build()

	if cfg.Processing.Idle.MaxItemsPerRun != DefaultIdleMaxItemsPerRun {
		t.Errorf("expected max items per run %d, got %d", DefaultIdleMaxItemsPerRun, cfg.Processing.Idle.MaxItemsPerRun)
	}

	if cfg.Processing.StateLayer.WindowingMode != DefaultWindowingMode {
		t.Errorf("expected windowing mode %q, got %q", DefaultWindowingMode, cfg.Processing.StateLayer.WindowingMode)
	}

	if len(cfg.Capability.OCR) == 0 {
		t.Error("expected at least one ocr provider, got none")
	}

	tess, exists := cfg.Capability.OCR["tesseract"]
	if !exists {
		t.Fatal("expected tesseract provider, got none")
	}
	if tess.Timeout != DefaultProviderTimeout {
		t.Errorf("expected provider timeout %v, got %v", DefaultProviderTimeout, tess.Timeout)
	}
}

func TestConfigBuilder_WithDataDir(t *testing.T) {
	cfg := NewTestConfig().
		WithDataDir("/var/lib/statetaped").
		Build()

	if cfg.DataDir != "/var/lib/statetaped" {
		t.Errorf("expected data dir %q, got %q", "/var/lib/statetaped", cfg.DataDir)
	}
}

func TestConfigBuilder_WithProvider(t *testing.T) {
	vlm := ProviderConfig{
		BaseURL:    "http://127.0.0.1:8081",
		Timeout:    20 * time.Second,
		MaxRetries: 1,
	}

	cfg := NewTestConfig().
		WithProvider("vlm", "local-vlm", vlm).
		Build()

	provider, exists := cfg.Capability.VLM["local-vlm"]
	if !exists {
		t.Fatal("expected local-vlm provider, got none")
	}
	if provider.BaseURL != vlm.BaseURL {
		t.Errorf("expected base URL %q, got %q", vlm.BaseURL, provider.BaseURL)
	}
	if provider.Timeout != vlm.Timeout {
		t.Errorf("expected timeout %v, got %v", vlm.Timeout, provider.Timeout)
	}
}

func TestConfigBuilder_WithWindowing(t *testing.T) {
	cfg := NewTestConfig().
		WithStateLayerEnabled(true).
		WithWindowing("heuristic_app_window_change", 3000).
		Build()

	if !cfg.Processing.StateLayer.Enabled {
		t.Error("expected state layer to be enabled")
	}
	if cfg.Processing.StateLayer.WindowingMode != "heuristic_app_window_change" {
		t.Errorf("expected windowing mode %q, got %q", "heuristic_app_window_change", cfg.Processing.StateLayer.WindowingMode)
	}
	if cfg.Processing.StateLayer.WindowMs != 3000 {
		t.Errorf("expected window ms %d, got %d", 3000, cfg.Processing.StateLayer.WindowMs)
	}
}

func TestConfigBuilder_WithRetention(t *testing.T) {
	cfg := NewTestConfig().
		WithTrainingEnabled(true).
		WithRetention(true, 5, "0 4 * * *").
		Build()

	sl := cfg.Processing.StateLayer
	if !sl.Features.TrainingEnabled {
		t.Error("expected training to be enabled")
	}
	if !sl.Training.Retention.Enabled {
		t.Error("expected retention to be enabled")
	}
	if sl.Training.Retention.MaxActiveModels != 5 {
		t.Errorf("expected max active models %d, got %d", 5, sl.Training.Retention.MaxActiveModels)
	}
	if sl.Training.Retention.Schedule != "0 4 * * *" {
		t.Errorf("expected schedule %q, got %q", "0 4 * * *", sl.Training.Retention.Schedule)
	}
}

func TestConfigBuilder_ChainedCalls(t *testing.T) {
	cfg := NewTestConfig().
		WithDataDir("/tmp/statetaped").
		WithPolicyFilePath("/etc/statetaped/policies.yaml").
		WithLoggingLevel("debug").
		WithMetricsEnabled(true).
		Build()

	if cfg.DataDir != "/tmp/statetaped" {
		t.Error("chained WithDataDir failed")
	}
	if cfg.Policy.FilePath != "/etc/statetaped/policies.yaml" {
		t.Error("chained WithPolicyFilePath failed")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Error("chained WithLoggingLevel failed")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("chained WithMetricsEnabled failed")
	}
}

func TestMinimalConfig(t *testing.T) {
	cfg := MinimalConfig()

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("minimal config should be valid, got error: %v", err)
	}
}
