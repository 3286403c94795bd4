package middleware

import (
	"context"

	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

type contextKey string

const ctxActor contextKey = "actor"

// WithActor stores the authenticated staff member on the context.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorFromContext returns the authenticated actor, or false when the request
// did not pass through Auth.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	if ctx == nil {
		return types.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(types.Actor)
	return actor, ok
}

func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.ID.String()
	}
	return ""
}
