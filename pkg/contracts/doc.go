// Package contracts validates the core record types (StateSpan,
// StateEdge, EvidenceRef, ProvenanceRecord, QueryEvidenceBundle) against
// a declarative schema-lite rule set: required fields, enum constraints,
// and primitive types. It is deliberately not a general
// JSON Schema engine — the records it validates are fixed Go structs,
// not arbitrary documents, so a hand-rolled field-by-field check is a
// better fit than compiling a schema document at runtime.
package contracts
