// Package idle drives idle-time derivation over captured evidence in a
// bounded, resumable, preemptible sweep: frame materialization, OCR/VLM
// extraction, derivation-edge emission, and delegation to the state-tape
// builder.
package idle
