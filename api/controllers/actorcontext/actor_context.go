package actorcontext

import (
	"net/http"

	"github.com/angelmondragon/shopfloor-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

// ResolveActor returns the authenticated staff member for audit and events.
func ResolveActor(r *http.Request) (types.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	if err := actor.Validate(); err != nil {
		return types.Actor{}, err
	}
	return actor, nil
}
