// Package providers implements HTTP client adapters for the OCR, VLM, and
// text-embedder capability interfaces defined in pkg/capability.
//
// Every model-serving process this daemon talks to (a local Tesseract
// sidecar, a llama.cpp server exposing a vision endpoint, a sentence
// embedding server) is assumed to run on loopback or a private network
// address the operator configures per provider. The adapters share one
// base HTTP client (httpClient) that provides connection pooling, bounded
// retries on transient errors, and an optional background health checker,
// following the same shape regardless of which capability they extract.
package providers
