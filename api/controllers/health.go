package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/shopfloor-backend/api/responses"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency the readiness probe must reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Shopfloor-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each dependency; nil entries are skipped so optional
// backends such as Redis can be left out.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Shopfloor-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		var failed bool
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = true
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "dependency", name), "health.ready.dependency_down")
				}
				continue
			}
			checks[name] = "up"
		}

		if failed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
