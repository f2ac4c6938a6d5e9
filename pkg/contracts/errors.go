package contracts

import "fmt"

// ValidationError names the offending field and record id of a schema
// violation. The state-tape builder treats this as fatal for the
// offending batch: it indicates a code or contract bug, not a data
// problem, so it is raised rather than counted and skipped.
type ValidationError struct {
	RecordID string
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("validation: record %s: field %q: %s", e.RecordID, e.Field, e.Message)
	}
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Message)
}

func newValidationError(recordID, field, message string) *ValidationError {
	return &ValidationError{RecordID: recordID, Field: field, Message: message}
}
