package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention STATETAPED_SECTION_FIELD (e.g.
// STATETAPED_DATA_DIR). Environment variables always take precedence
// over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("STATETAPED_DATA_DIR"); val != "" {
		cfg.DataDir = val
	}

	if val := os.Getenv("STATETAPED_PROCESSING_IDLE_MAX_ITEMS_PER_RUN"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Processing.Idle.MaxItemsPerRun = i
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_IDLE_MAX_SECONDS_PER_RUN"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Processing.Idle.MaxSecondsPerRun = i
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_IDLE_EXTRACTORS_OCR"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Processing.Idle.Extractors.OCR = b
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_IDLE_EXTRACTORS_VLM"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Processing.Idle.Extractors.VLM = b
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_SST_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Processing.SST.Enabled = b
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_STATE_LAYER_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Processing.StateLayer.Enabled = b
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_STATE_LAYER_FEATURES_TRAINING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Processing.StateLayer.Features.TrainingEnabled = b
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_STATE_LAYER_TRAINING_RETENTION_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Processing.StateLayer.Training.Retention.Enabled = b
		}
	}
	if val := os.Getenv("STATETAPED_PROCESSING_STATE_LAYER_TRAINING_RETENTION_SCHEDULE"); val != "" {
		cfg.Processing.StateLayer.Training.Retention.Schedule = val
	}

	if val := os.Getenv("STATETAPED_POLICY_FILE_PATH"); val != "" {
		cfg.Policy.FilePath = val
	}
	if val := os.Getenv("STATETAPED_POLICY_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Policy.Watch = b
		}
	}

	if val := os.Getenv("STATETAPED_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("STATETAPED_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("STATETAPED_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("STATETAPED_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}

	applyProviderEnvOverrides(cfg.Capability.OCR, "OCR")
	applyProviderEnvOverrides(cfg.Capability.VLM, "VLM")
	applyProviderEnvOverrides(cfg.Capability.TextEmbedder, "TEXT_EMBEDDER")
	applyProviderEnvOverrides(cfg.Capability.Reranker, "RERANKER")
}

// applyProviderEnvOverrides applies STATETAPED_CAPABILITY_<KIND>_<PROVIDER>_<FIELD>
// style overrides to every already-registered provider of one kind; it
// does not register new providers, since a provider's existence is a
// structural decision made in the YAML file.
func applyProviderEnvOverrides(providers map[string]ProviderConfig, kind string) {
	for id, p := range providers {
		prefix := fmt.Sprintf("STATETAPED_CAPABILITY_%s_%s_", kind, envKey(id))
		if val := os.Getenv(prefix + "BASE_URL"); val != "" {
			p.BaseURL = val
		}
		if val := os.Getenv(prefix + "API_KEY"); val != "" {
			p.APIKey = val
		}
		if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				p.Timeout = d
			}
		}
		if val := os.Getenv(prefix + "MAX_RETRIES"); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				p.MaxRetries = i
			}
		}
		providers[id] = p
	}
}

func envKey(providerID string) string {
	out := make([]byte, len(providerID))
	for i := 0; i < len(providerID); i++ {
		c := providerID[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		} else if c == '-' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}
