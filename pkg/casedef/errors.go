package casedef

import (
	"errors"
	"fmt"
	"strings"
)

// Business failures returned by the stores. Callers match with errors.Is.
var (
	ErrDuplicateName = errors.New("name already exists")
	ErrNotFound      = errors.New("not found")
	ErrInUse         = errors.New("referenced by existing cases")
)

// ValidationError carries the per-field messages produced by the dependency
// evaluator when a case payload is rejected.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// AsValidation returns the ValidationError wrapped in err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
