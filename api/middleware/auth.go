package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/shopfloor-backend/api/responses"
	pkgAuth "github.com/angelmondragon/shopfloor-backend/pkg/auth"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

// Auth validates a bearer token and seeds the request context with the actor.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actor := types.Actor{ID: claims.UserID, Name: claims.Name, Role: claims.Role}
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithUserID(ctx, actor.ID.String())
				ctx = logg.WithActorRole(ctx, actor.Role.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
