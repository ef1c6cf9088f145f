package handler

import (
	"context"

	"github.com/caseflow-dev/caseflow/internal/actor"
)

func userFromContext(ctx context.Context) string {
	return actor.FromContext(ctx)
}
