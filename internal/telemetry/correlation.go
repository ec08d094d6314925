package telemetry

import "context"

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

// ContextKeyCorrelationID stores the request's correlation id.
const ContextKeyCorrelationID ContextKey = "correlationId"

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyCorrelationID).(string)
	return id
}
