// Package builder converts an ordered batch of DerivedSSTState records
// for one session into StateSpan and StateEdge records: it windows
// states by time (and optionally by app-focus change), pools per-state
// text/vision/layout/input features into a single embedding per window,
// projects to Config.OutDim dimensions (768 by default), and attaches full evidence and
// provenance. Every output is validated against pkg/contracts before
// being returned.
package builder
