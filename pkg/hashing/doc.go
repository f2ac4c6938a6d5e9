// Package hashing provides deterministic content hashing, canonical JSON
// serialization, and id derivation from semantic parts.
//
// Every identifier in the system is a pure function of the parts that define
// it: spans, edges, checkpoints, and config hashes are all derived by
// canonicalizing a Go value to RFC 8785 JSON and hashing the result with
// SHA-256. Two implementations that agree on canonicalization and hashing
// will derive byte-identical ids from the same inputs, which is what lets
// the state-tape builder and idle processor be restarted, re-run, and
// checkpointed without producing duplicate records.
package hashing
