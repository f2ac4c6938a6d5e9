package jepa

import "errors"

var (
	// ErrModelNotFound is returned when a (model_version, training_run_id)
	// pair has no artifacts on disk or in the archive.
	ErrModelNotFound = errors.New("jepa: model not found")

	// ErrSignatureMissing is returned when a model directory has a
	// model.json but no accompanying model.sig.
	ErrSignatureMissing = errors.New("jepa: model signature missing")

	// ErrSignatureMismatch is returned when a model's signature does not
	// verify against the current signing key.
	ErrSignatureMismatch = errors.New("jepa: model signature mismatch")

	// ErrEvalFailed is returned when a model's stored eval block does
	// not report ok=true.
	ErrEvalFailed = errors.New("jepa: model eval failed")

	// ErrNotApproved is returned when a model's (version, run, signature)
	// triple has no matching entry in the approvals ledger.
	ErrNotApproved = errors.New("jepa: model not approved")

	// ErrConfigHashMismatch is returned by Store.LoadLatestApproved when the
	// latest approved model's config_hash does not match the caller's
	// expected hash; callers treat this as the documented fallback path,
	// not a hard failure.
	ErrConfigHashMismatch = errors.New("jepa: model config_hash mismatch")

	// ErrApprovalNotFound is returned by ApprovalStore.Promote when no
	// matching approval entry exists to promote.
	ErrApprovalNotFound = errors.New("jepa: approval not found")
)
