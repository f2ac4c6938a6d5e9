// Package metadata is the append-only record store backing evidence,
// derived records, derivation edges, and checkpoints: everything the
// idle processor reads and writes that isn't a media blob or a
// state-tape row. Records are JSON-encoded values keyed by a string
// record id; PutNew never overwrites, matching the system's insert-only
// semantics, while PutReplace is reserved for checkpoint records, the
// one mutable exception.
package metadata
