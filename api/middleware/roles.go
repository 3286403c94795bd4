package middleware

import (
	"net/http"

	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

// RequireRole admits actors whose role passes allowed.
func RequireRole(allowed func(enums.Role) bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok || !allowed(actor.Role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireBilling(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireRole(enums.Role.CanManageBilling, logg)
}

func RequireInventoryManager(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireRole(enums.Role.CanManageInventory, logg)
}
