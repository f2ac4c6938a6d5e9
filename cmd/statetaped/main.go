// Command statetaped is the idle-time derivation and state-tape engine
// daemon. It watches locally captured screen evidence, extracts text and
// structured screen state from it during idle windows, builds a
// privacy-governed state tape of embeddings over that state, and serves
// evidence-grounded retrieval queries over the tape.
//
// Usage:
//
//	# Start the daemon
//	statetaped run
//
//	# Run one bounded idle-processor sweep and exit
//	statetaped idle step --run-id run-123
//
//	# Build state-tape spans from structured state already derived
//	statetaped tape build --session-id session-1 --states states.json
//
//	# Query the state tape
//	statetaped retrieve query --text "terminal error about disk space"
//
//	# Approve a trained encoder model
//	statetaped jepa approve --model-version v3 --training-run-id run-9
//
//	# List known encoder models
//	statetaped jepa list
//
//	# Show version information
//	statetaped version
package main

func main() {
	Execute()
}
