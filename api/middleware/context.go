package middleware

import "context"

type contextKey string

const (
	ctxActorID contextKey = "actor_id"
	ctxToken   contextKey = "session_token"
	ctxRole    contextKey = "actor_role"
)

// ActorIDFromContext returns the authenticated user id, or 0.
func ActorIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(ctxActorID).(int64); ok {
		return v
	}
	return 0
}

// TokenFromContext returns the caller's raw session token. Upstream calls
// forward it so the directory and identity services see the same session.
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxToken).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the authenticated user and token into the context.
func WithActor(ctx context.Context, actorID int64, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return context.WithValue(ctx, ctxToken, token)
}
