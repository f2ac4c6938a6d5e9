// Package vectorindex answers "top-k spans matching a 768-dim query
// vector" using an in-memory approximate nearest neighbor index: a
// 16-bit sign-bucket hash with single-bit-flip neighbor expansion,
// snapshot-marker staleness detection against the backing store, and an
// explicit prohibition on ever falling back to a full table scan.
package vectorindex
