// Package capability normalizes the shapes a capability (OCR, VLM, text
// embedder, reranker, storage, ...) can be registered in — a single
// provider, a provider_id-keyed map, or an iterator object — into a
// sorted list of (provider_id, provider) pairs that callers can walk in
// a deterministic order.
package capability
