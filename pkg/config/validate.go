package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field.
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any validation rules fail, or nil if valid. All
// errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.DataDir == "" {
		errs = append(errs, FieldError{Field: "data_dir", Message: "data directory is required"})
	}

	errs = append(errs, validateProviders("capability.ocr", cfg.Capability.OCR)...)
	errs = append(errs, validateProviders("capability.vlm", cfg.Capability.VLM)...)
	errs = append(errs, validateProviders("capability.text_embedder", cfg.Capability.TextEmbedder)...)
	errs = append(errs, validateProviders("capability.reranker", cfg.Capability.Reranker)...)

	errs = append(errs, validateProcessing(&cfg.Processing)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProviders(prefix string, providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError
	for name, p := range providers {
		field := fmt.Sprintf("%s.%s", prefix, name)
		if p.Timeout < 0 {
			errs = append(errs, FieldError{Field: field + ".timeout", Message: "timeout must be non-negative"})
		}
		if p.MaxRetries < 0 {
			errs = append(errs, FieldError{Field: field + ".max_retries", Message: "max retries must be non-negative"})
		}
		if p.MaxRetries > 10 {
			errs = append(errs, FieldError{Field: field + ".max_retries", Message: "max retries exceeds reasonable limit (10)"})
		}
	}
	return errs
}

func validateProcessing(cfg *ProcessingConfig) []FieldError {
	var errs []FieldError

	if cfg.Idle.MaxItemsPerRun < 0 {
		errs = append(errs, FieldError{Field: "processing.idle.max_items_per_run", Message: "must be non-negative"})
	}
	if cfg.Idle.MaxSecondsPerRun < 0 {
		errs = append(errs, FieldError{Field: "processing.idle.max_seconds_per_run", Message: "must be non-negative"})
	}

	sl := cfg.StateLayer
	if sl.Enabled {
		validModes := map[string]bool{"fixed_duration": true, "heuristic_app_window_change": true}
		if !validModes[sl.WindowingMode] {
			errs = append(errs, FieldError{
				Field:   "processing.state_layer.windowing_mode",
				Message: fmt.Sprintf("invalid mode %q: must be 'fixed_duration' or 'heuristic_app_window_change'", sl.WindowingMode),
			})
		}
		if sl.WindowMs <= 0 {
			errs = append(errs, FieldError{Field: "processing.state_layer.window_ms", Message: "must be positive"})
		}
		if sl.MaxEvidenceRefs <= 0 {
			errs = append(errs, FieldError{Field: "processing.state_layer.max_evidence_refs", Message: "must be positive"})
		}
		if sl.Index.TopK <= 0 {
			errs = append(errs, FieldError{Field: "processing.state_layer.index.top_k", Message: "must be positive"})
		}
		if sl.Index.MinScore < -1 || sl.Index.MinScore > 1 {
			errs = append(errs, FieldError{Field: "processing.state_layer.index.min_score", Message: "must be between -1 and 1"})
		}
		if sl.Evidence.MaxSnippetChars <= 0 {
			errs = append(errs, FieldError{Field: "processing.state_layer.evidence.max_snippet_chars", Message: "must be positive"})
		}
		if sl.Training.Retention.Enabled && sl.Training.Retention.MaxActiveModels <= 0 {
			errs = append(errs, FieldError{
				Field:   "processing.state_layer.training.retention.max_active_models",
				Message: "must be positive when retention is enabled",
			})
		}
	}

	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError
	if cfg.FilePath == "" {
		errs = append(errs, FieldError{Field: "policy.file_path", Message: "file path is required"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "telemetry.metrics.listen_address", Message: "listen address is required when metrics are enabled"})
	}

	return errs
}
