package sdk

import "github.com/caseflow-dev/caseflow/pkg/casedef"

// Sentinel errors surfaced by Service operations. They alias the storage
// layer's errors so callers only import this package.
var (
	ErrDuplicateName = casedef.ErrDuplicateName
	ErrNotFound      = casedef.ErrNotFound
	ErrInUse         = casedef.ErrInUse
)

// ValidationError carries the field-level messages of a rejected payload.
type ValidationError = casedef.ValidationError

// AsValidation unwraps a ValidationError when err carries one.
var AsValidation = casedef.AsValidation
