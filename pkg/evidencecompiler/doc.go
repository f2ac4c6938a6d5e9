// Package evidencecompiler assembles a cited, schema-valid
// QueryEvidenceBundle from retrieval hits: evidence truncation, text
// snippet resolution, policy-gated redaction, and final validation.
package evidencecompiler
