// Package retrieval translates a query string into a bounded, cited
// list of state-span hits: policy check, query embedding, vector-index
// search with a linear-scan fallback, app filtering, and evidence
// attachment, all recorded on an append-only trace.
package retrieval
