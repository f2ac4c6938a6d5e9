package policygate

import (
	"strings"

	"github.com/localtrace/statetape/pkg/model"
)

// Config is the subset of processing.state_layer.policy.* that Decide
// reads.
type Config struct {
	AllowRawMedia  bool
	AllowTextExport bool
	RedactText     bool
	AppAllowlist   []string
	AppDenylist    []string
}

// DefaultConfig is conservative by default: raw media denied, text
// export allowed, redaction off, empty lists.
func DefaultConfig() Config {
	return Config{
		AllowRawMedia:   false,
		AllowTextExport: true,
		RedactText:      false,
	}
}

// Decide resolves a StatePolicyDecision from the gate's configuration.
// It takes no per-request context: every call with the same Config
// returns the same decision.
func Decide(cfg Config) model.StatePolicyDecision {
	return model.StatePolicyDecision{
		CanShowRawMedia: cfg.AllowRawMedia,
		CanExportText:   cfg.AllowTextExport,
		RedactText:      cfg.RedactText,
		AppAllowlist:    append([]string(nil), cfg.AppAllowlist...),
		AppDenylist:     append([]string(nil), cfg.AppDenylist...),
	}
}

// AppAllowed reports whether appHint is permitted under decision.
//
// No hint is always allowed. A non-empty allowlist permits only hints
// containing one of its tokens (case-insensitive substring match);
// otherwise a non-empty denylist blocks hints containing one of its
// tokens; otherwise the hint is allowed.
func AppAllowed(appHint string, decision model.StatePolicyDecision) bool {
	if appHint == "" {
		return true
	}
	lower := strings.ToLower(appHint)

	if len(decision.AppAllowlist) > 0 {
		for _, token := range decision.AppAllowlist {
			if token != "" && strings.Contains(lower, strings.ToLower(token)) {
				return true
			}
		}
		return false
	}

	if len(decision.AppDenylist) > 0 {
		for _, token := range decision.AppDenylist {
			if token != "" && strings.Contains(lower, strings.ToLower(token)) {
				return false
			}
		}
		return true
	}

	return true
}
