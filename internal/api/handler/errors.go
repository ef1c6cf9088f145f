package handler

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// mapError converts store errors into huma status errors. Unrecognized errors
// pass through and surface as 500s.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var verr *casedef.ValidationError
	if errors.As(err, &verr) {
		details := make([]error, len(verr.Errors))
		for i, msg := range verr.Errors {
			details[i] = &huma.ErrorDetail{Location: "body", Message: msg}
		}
		return huma.NewError(http.StatusUnprocessableEntity, "validation failed", details...)
	}
	switch {
	case errors.Is(err, casedef.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, casedef.ErrDuplicateName):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, casedef.ErrInUse):
		return huma.Error409Conflict(err.Error())
	}
	return err
}
