package store

import "fmt"

// CorruptStoreError indicates the state-tape database could not be
// opened even after Open archived the original file (a copy plus a
// recovery marker) and tried a fresh store at the original path.
type CorruptStoreError struct {
	Path  string
	Cause error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("store: %s is not a valid state-tape database: %v", e.Path, e.Cause)
}

func (e *CorruptStoreError) Unwrap() error { return e.Cause }

// StoreError wraps a failed store operation with its operation name.
type StoreError struct {
	Operation string
	Cause     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Operation, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func newStoreError(operation string, cause error) *StoreError {
	return &StoreError{Operation: operation, Cause: cause}
}
