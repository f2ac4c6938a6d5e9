package policygate

import (
	"testing"

	"github.com/localtrace/statetape/pkg/model"
)

func TestDecideAppliesDefaults(t *testing.T) {
	d := Decide(DefaultConfig())
	if d.CanShowRawMedia {
		t.Error("raw media should be denied by default")
	}
	if !d.CanExportText {
		t.Error("text export should be allowed by default")
	}
	if d.RedactText {
		t.Error("redaction should be off by default")
	}
}

func TestAppAllowedNoHint(t *testing.T) {
	if !AppAllowed("", model.StatePolicyDecision{AppDenylist: []string{"secret"}}) {
		t.Error("no hint should always be allowed")
	}
}

func TestAppAllowedAllowlist(t *testing.T) {
	decision := model.StatePolicyDecision{AppAllowlist: []string{"code", "term"}}
	if !AppAllowed("Visual Studio Code", decision) {
		t.Error("app matching allowlist token should be allowed")
	}
	if AppAllowed("Finder", decision) {
		t.Error("app not matching allowlist should be denied")
	}
}

func TestAppAllowedDenylist(t *testing.T) {
	decision := model.StatePolicyDecision{AppDenylist: []string{"bank", "wallet"}}
	if AppAllowed("MyBank App", decision) {
		t.Error("app matching denylist token should be denied")
	}
	if !AppAllowed("Notes", decision) {
		t.Error("app not matching denylist should be allowed")
	}
}

func TestAppAllowedNoLists(t *testing.T) {
	if !AppAllowed("Anything", model.StatePolicyDecision{}) {
		t.Error("with no lists, any app hint should be allowed")
	}
}
