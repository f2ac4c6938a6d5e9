package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestInitialize(t *testing.T) {
	globalConfig = nil
	initOnce = *new(sync.Once)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
data_dir: "/var/lib/statetaped"

telemetry:
  logging:
    level: "info"
    format: "json"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	err := Initialize(configPath)
	if err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}

	if cfg.DataDir != "/var/lib/statetaped" {
		t.Errorf("expected data dir %q, got %q", "/var/lib/statetaped", cfg.DataDir)
	}
}

func TestInitialize_MultipleCallsIgnored(t *testing.T) {
	globalConfig = nil
	initOnce = *new(sync.Once)

	tmpDir := t.TempDir()
	configPath1 := filepath.Join(tmpDir, "config1.yaml")
	configPath2 := filepath.Join(tmpDir, "config2.yaml")

	config1Content := `
data_dir: "/data/one"

telemetry:
  logging:
    level: "info"
    format: "json"
`

	config2Content := `
data_dir: "/data/two"

telemetry:
  logging:
    level: "debug"
    format: "text"
`

	if err := os.WriteFile(configPath1, []byte(config1Content), 0644); err != nil {
		t.Fatalf("failed to write config1 file: %v", err)
	}
	if err := os.WriteFile(configPath2, []byte(config2Content), 0644); err != nil {
		t.Fatalf("failed to write config2 file: %v", err)
	}

	err := Initialize(configPath1)
	if err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	firstConfig := GetConfig()

	Initialize(configPath2)

	secondConfig := GetConfig()

	if firstConfig.DataDir != secondConfig.DataDir {
		t.Error("second Initialize call should be ignored")
	}
}

func TestGetConfig_BeforeInitialize(t *testing.T) {
	globalConfig = nil

	cfg := GetConfig()
	if cfg != nil {
		t.Error("expected nil config before initialization")
	}
}

func TestSetConfig(t *testing.T) {
	globalConfig = nil

	testCfg := NewTestConfig().
		WithDataDir("/var/lib/statetaped-test").
		Build()

	SetConfig(testCfg)

	retrievedCfg := GetConfig()
	if retrievedCfg == nil {
		t.Fatal("expected non-nil config after SetConfig")
	}

	if retrievedCfg.DataDir != "/var/lib/statetaped-test" {
		t.Errorf("expected data dir %q, got %q", "/var/lib/statetaped-test", retrievedCfg.DataDir)
	}
}

func TestReloadConfig(t *testing.T) {
	globalConfig = nil
	initOnce = *new(sync.Once)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	initialContent := `
data_dir: "/data/initial"

telemetry:
  logging:
    level: "info"
    format: "json"
`

	if err := os.WriteFile(configPath, []byte(initialContent), 0644); err != nil {
		t.Fatalf("failed to write initial config file: %v", err)
	}

	if err := Initialize(configPath); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	initialCfg := GetConfig()
	if initialCfg.DataDir != "/data/initial" {
		t.Error("initial config not loaded correctly")
	}

	updatedContent := `
data_dir: "/data/updated"

telemetry:
  logging:
    level: "debug"
    format: "text"
`

	if err := os.WriteFile(configPath, []byte(updatedContent), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	if err := ReloadConfig(configPath); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}

	reloadedCfg := GetConfig()
	if reloadedCfg.DataDir != "/data/updated" {
		t.Errorf("expected updated data dir %q, got %q", "/data/updated", reloadedCfg.DataDir)
	}
	if reloadedCfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected updated logging level %q, got %q", "debug", reloadedCfg.Telemetry.Logging.Level)
	}
}

func TestReloadConfig_ValidationFailure(t *testing.T) {
	globalConfig = nil
	initOnce = *new(sync.Once)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	validContent := `
data_dir: "/data/valid"

telemetry:
  logging:
    level: "info"
    format: "json"
`

	if err := os.WriteFile(configPath, []byte(validContent), 0644); err != nil {
		t.Fatalf("failed to write initial config file: %v", err)
	}

	if err := Initialize(configPath); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	originalCfg := GetConfig()

	invalidContent := `
data_dir: "/data/valid"

telemetry:
  logging:
    level: "invalid"
    format: "json"
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("failed to write invalid config file: %v", err)
	}

	err := ReloadConfig(configPath)
	if err == nil {
		t.Fatal("expected error when reloading invalid config")
	}

	currentCfg := GetConfig()
	if currentCfg.DataDir != originalCfg.DataDir {
		t.Error("original config should be preserved on reload failure")
	}
}

func TestMustGetConfig(t *testing.T) {
	globalConfig = nil
	initOnce = *new(sync.Once)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected MustGetConfig to panic when not initialized")
		}
	}()

	MustGetConfig()
}

func TestMustGetConfig_AfterInitialize(t *testing.T) {
	globalConfig = nil
	initOnce = *new(sync.Once)

	SetConfig(MinimalConfig())

	cfg := MustGetConfig()
	if cfg == nil {
		t.Error("expected non-nil config from MustGetConfig")
	}
}
