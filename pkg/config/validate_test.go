package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := MinimalConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		// No data dir, no policy file path, invalid log level: three failures.
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{Level: "not-a-level", Format: "json"},
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	validationErr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	if len(validationErr.Errors) < 2 {
		t.Errorf("expected multiple errors, got %d", len(validationErr.Errors))
	}

	errMsg := validationErr.Error()
	if !strings.Contains(errMsg, "validation failed with") {
		t.Errorf("error message should mention multiple errors: %s", errMsg)
	}
}

func TestValidate_DataDirRequired(t *testing.T) {
	cfg := MinimalConfig()
	cfg.DataDir = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty data dir")
	}
	if !strings.Contains(err.Error(), "data_dir") {
		t.Errorf("expected error mentioning data_dir, got: %v", err)
	}
}

func TestValidateProviders(t *testing.T) {
	tests := []struct {
		name       string
		providers  map[string]ProviderConfig
		wantError  bool
		errorField string
	}{
		{
			name: "valid provider",
			providers: map[string]ProviderConfig{
				"tesseract": {Timeout: DefaultProviderTimeout, MaxRetries: 2},
			},
			wantError: false,
		},
		{
			name: "negative timeout",
			providers: map[string]ProviderConfig{
				"bad": {Timeout: -1},
			},
			wantError:  true,
			errorField: "capability.ocr.bad.timeout",
		},
		{
			name: "negative max retries",
			providers: map[string]ProviderConfig{
				"bad": {MaxRetries: -1},
			},
			wantError:  true,
			errorField: "capability.ocr.bad.max_retries",
		},
		{
			name: "excessive max retries",
			providers: map[string]ProviderConfig{
				"bad": {MaxRetries: 50},
			},
			wantError:  true,
			errorField: "capability.ocr.bad.max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateProviders("capability.ocr", tt.providers)
			if tt.wantError && len(errs) == 0 {
				t.Error("expected validation error, got none")
			}
			if !tt.wantError && len(errs) > 0 {
				t.Errorf("expected no validation error, got: %v", errs)
			}
			if tt.wantError {
				found := false
				for _, e := range errs {
					if e.Field == tt.errorField {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("expected error for field %q, got errors: %v", tt.errorField, errs)
				}
			}
		})
	}
}

func TestValidateProcessing_WindowingMode(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		wantError bool
	}{
		{name: "fixed duration", mode: "fixed_duration", wantError: false},
		{name: "heuristic app window change", mode: "heuristic_app_window_change", wantError: false},
		{name: "unknown mode", mode: "random_thing", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ProcessingConfig{
				StateLayer: StateLayerConfig{
					Enabled:         true,
					WindowingMode:   tt.mode,
					WindowMs:        1000,
					MaxEvidenceRefs: 4,
					Index:           IndexConfig{TopK: 1},
					Evidence:        StateEvidenceConfig{MaxSnippetChars: 100},
				},
			}
			errs := validateProcessing(&cfg)
			found := false
			for _, e := range errs {
				if e.Field == "processing.state_layer.windowing_mode" {
					found = true
				}
			}
			if tt.wantError != found {
				t.Errorf("wantError=%v but windowing_mode error found=%v (errs=%v)", tt.wantError, found, errs)
			}
		})
	}
}

func TestValidateProcessing_DisabledStateLayerSkipsChecks(t *testing.T) {
	cfg := ProcessingConfig{
		StateLayer: StateLayerConfig{
			Enabled:       false,
			WindowingMode: "nonsense",
		},
	}
	errs := validateProcessing(&cfg)
	if len(errs) != 0 {
		t.Errorf("expected no errors when state layer disabled, got: %v", errs)
	}
}

func TestValidateProcessing_RetentionRequiresMaxActive(t *testing.T) {
	cfg := ProcessingConfig{
		StateLayer: StateLayerConfig{
			Enabled:         true,
			WindowingMode:   "fixed_duration",
			WindowMs:        1000,
			MaxEvidenceRefs: 4,
			Index:           IndexConfig{TopK: 1},
			Evidence:        StateEvidenceConfig{MaxSnippetChars: 100},
			Training: TrainingConfig{
				Retention: RetentionConfig{Enabled: true, MaxActiveModels: 0},
			},
		},
	}
	errs := validateProcessing(&cfg)
	found := false
	for _, e := range errs {
		if e.Field == "processing.state_layer.training.retention.max_active_models" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected max_active_models error, got: %v", errs)
	}
}

func TestValidatePolicy(t *testing.T) {
	errs := validatePolicy(&PolicyConfig{FilePath: ""})
	if len(errs) == 0 {
		t.Error("expected error for empty policy file path")
	}

	errs = validatePolicy(&PolicyConfig{FilePath: "./policies.yaml"})
	if len(errs) != 0 {
		t.Errorf("expected no error, got: %v", errs)
	}
}

func TestValidateTelemetry(t *testing.T) {
	tests := []struct {
		name      string
		cfg       TelemetryConfig
		wantField string
	}{
		{
			name: "valid",
			cfg: TelemetryConfig{
				Logging: LoggingConfig{Level: "info", Format: "json"},
				Metrics: MetricsConfig{Enabled: false},
			},
		},
		{
			name: "bad level",
			cfg: TelemetryConfig{
				Logging: LoggingConfig{Level: "verbose", Format: "json"},
			},
			wantField: "telemetry.logging.level",
		},
		{
			name: "bad format",
			cfg: TelemetryConfig{
				Logging: LoggingConfig{Level: "info", Format: "xml"},
			},
			wantField: "telemetry.logging.format",
		},
		{
			name: "metrics enabled without listen address",
			cfg: TelemetryConfig{
				Logging: LoggingConfig{Level: "info", Format: "json"},
				Metrics: MetricsConfig{Enabled: true, ListenAddress: ""},
			},
			wantField: "telemetry.metrics.listen_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateTelemetry(&tt.cfg)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("expected no errors, got: %v", errs)
				}
				return
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got: %v", tt.wantField, errs)
			}
		})
	}
}

func TestFieldError_Error(t *testing.T) {
	e := FieldError{Field: "data_dir", Message: "is required"}
	if e.Error() != "data_dir: is required" {
		t.Errorf("unexpected error string: %q", e.Error())
	}
}

func TestValidationError_Error_Single(t *testing.T) {
	ve := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if !strings.Contains(ve.Error(), "a: bad") {
		t.Errorf("expected single-error message to include field error, got: %q", ve.Error())
	}
}

func TestValidationError_Error_Empty(t *testing.T) {
	ve := ValidationError{}
	if ve.Error() != "configuration validation failed" {
		t.Errorf("unexpected message for empty ValidationError: %q", ve.Error())
	}
}
