package model

// ValidationError rejects bad input (malformed rules, out-of-range risk
// scores) before any state change. Callers distinguish it from other
// failures with errors.As.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return "validation failed: " + e.Field + ": " + e.Reason
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
