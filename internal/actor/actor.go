package actor

import "context"

// ctxKey is an unexported type for context keys defined in this package.
type ctxKey struct{}

// Default is recorded when no actor is present on the request.
const Default = "system"

// WithActor stores the acting username in the context.
func WithActor(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// FromContext retrieves the acting username. Default if missing.
func FromContext(ctx context.Context) string {
	if v, _ := ctx.Value(ctxKey{}).(string); v != "" {
		return v
	}
	return Default
}
