package orchestrator

import "fmt"

// ValidationError is the error orchestrator operations return for a bad
// request (spec.md §7): a request references a missing or inactive
// area/category/engine, or an out-of-range grid size. Nothing is
// persisted when this is returned. Database errors are returned to the
// caller as they come, not wrapped in this type.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var validGridSizes = map[int]bool{3: true, 5: true, 7: true, 9: true}
