package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"

	"github.com/caseflow-dev/caseflow/internal/actor"
)

// ExtractActor records the acting username from the X-User header so that
// created_by/last_modified_by columns carry a useful value. Absent headers
// fall back to the package default.
func ExtractActor(ctx huma.Context, next func(huma.Context)) {
	r, w := humachi.Unwrap(ctx)
	if user := r.Header.Get("X-User"); user != "" {
		r = r.WithContext(actor.WithActor(r.Context(), user))
	}
	next(humachi.NewContext(ctx.Operation(), r, w))
}
