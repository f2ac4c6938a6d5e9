// Package jepa implements the optional learned encoder: offline training
// of a small feed-forward encoder/predictor over state-span embeddings,
// HMAC-signed model artifacts, an approvals ledger gating which signed
// model may be loaded, and a retention scheduler that archives approved
// models beyond a configured active-model limit.
//
// None of this is on the hot path of the idle processor or the state
// tape builder: when no approved, config-hash-matching model is loaded,
// callers fall back to the deterministic sign-bit projection in
// pkg/hashing, which is always available and requires no training data.
package jepa
