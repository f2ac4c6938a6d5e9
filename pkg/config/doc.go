// Package config provides configuration management for statetaped.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention STATETAPED_SECTION_FIELD.
// For example:
//
//   - STATETAPED_PROCESSING_IDLE_MAX_ITEMS_PER_RUN overrides processing.idle.max_items_per_run
//   - STATETAPED_POLICY_WATCH overrides policy.watch
//   - STATETAPED_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	// At application startup
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anywhere in the application
//	cfg := config.GetConfig()
//	fmt.Println(cfg.DataDir)
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (data_dir, policy.file_path)
//   - Range validation (e.g., provider max_retries must be 0-10, idle
//     budgets must be non-negative)
//   - State-layer checks when processing.state_layer.enabled is true
//     (windowing mode enum, positive window and index bounds, min_score
//     between -1 and 1)
//   - Telemetry checks (logging level and format enums, a metrics listen
//     address when metrics are enabled)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - data_dir: data directory is required
//	  - policy.file_path: file path is required
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	data_dir: "./data"
//
//	policy:
//	  file_path: "./policy.yaml"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton pattern uses read-write
// locks to allow concurrent reads while protecting against concurrent writes during
// reload operations.
package config
