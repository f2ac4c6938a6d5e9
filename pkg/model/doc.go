// Package model defines the shared record types that flow between the
// idle processor, the state-tape builder, the append-only store, the
// vector index, and retrieval: capture evidence, derived text and
// structured-state records, state spans and edges, evidence references,
// provenance, checkpoints, and query bundles.
//
// Every type here is a plain data holder. Construction, validation, and
// persistence live in the packages that own those concerns (pkg/contracts,
// pkg/statetape/store, pkg/idle).
package model
