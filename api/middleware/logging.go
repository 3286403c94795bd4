package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

// quietPrefixes are probe endpoints logged at debug so they do not drown the
// request log.
var quietPrefixes = []string{"/health/", "/metrics"}

// Logging writes one access entry per request once the handler returns. The
// Failed requests log at warn; the error itself was already logged where the
// response was written.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]any{
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					fields["route"] = pattern
				}
			}
			logAccess(logg, logg.WithFields(ctx, fields), r.URL.Path, status)
		})
	}
}

func logAccess(logg *logger.Logger, ctx context.Context, path string, status int) {
	switch {
	case status >= http.StatusInternalServerError:
		logg.Warn(ctx, "request failed")
	case status >= http.StatusBadRequest:
		logg.Warn(ctx, "request rejected")
	case isQuiet(path):
		logg.Debug(ctx, "request complete")
	default:
		logg.Info(ctx, "request complete")
	}
}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
