// Package store is the append-only relational store for state spans,
// state edges, and evidence-link rows: an embedded SQLite database with
// insert-only semantics (unique-key collisions are skipped, never
// errors), a snapshot marker the vector index uses to detect drift, and
// archive-on-corruption recovery.
package store
