package middleware

import "context"

type contextKey string

const ctxActorID contextKey = "actor_id"

// ActorIDFromContext returns the caller identity set by Actor, or "".
func ActorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxActorID)
}

// WithActorID injects the actor identifier into the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActorID, actorID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
