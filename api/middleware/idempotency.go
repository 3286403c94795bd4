package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopfloor-backend/api/responses"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// guardedRoute is a POST path template where "*" matches one path segment.
type guardedRoute struct {
	segments []string
	ttl      time.Duration
}

func guard(template string, ttl time.Duration) guardedRoute {
	return guardedRoute{segments: splitPath(template), ttl: ttl}
}

var guardedRoutes = []guardedRoute{
	guard("/api/v1/work-orders", defaultIdempotencyTTL),
	guard("/api/v1/work-orders/*/transition", defaultIdempotencyTTL),
	guard("/api/v1/work-orders/*/assign", defaultIdempotencyTTL),
	guard("/api/v1/work-orders/*/parts", defaultIdempotencyTTL),
	guard("/api/v1/work-orders/*/timers", defaultIdempotencyTTL),
	guard("/api/v1/timers/*/stop", defaultIdempotencyTTL),
	guard("/api/v1/inventory", defaultIdempotencyTTL),
	guard("/api/v1/inventory/*/restock", defaultIdempotencyTTL),

	// money movement keeps its replay window longer
	guard("/api/v1/work-orders/*/invoice", criticalIdempotencyTTL),
	guard("/api/v1/invoices", criticalIdempotencyTTL),
	guard("/api/v1/invoices/*/send", criticalIdempotencyTTL),
	guard("/api/v1/invoices/*/pay", criticalIdempotencyTTL),
	guard("/api/v1/invoices/*/cancel", criticalIdempotencyTTL),
}

func (g guardedRoute) matches(segments []string) bool {
	if len(segments) != len(g.segments) {
		return false
	}
	for i, want := range g.segments {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// routeTTL reports the replay window for a mutating request, if it is guarded.
func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	segments := splitPath(path)
	for _, route := range guardedRoutes {
		if route.matches(segments) {
			return route.ttl, true
		}
	}
	return 0, false
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first response recorded for an Idempotency-Key on
// guarded routes. Keys are scoped per actor, method and path. A nil store
// disables the middleware.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, r.URL.Path)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|"), clientKey)

			raw, err := store.Get(ctx, key)
			switch {
			case err != nil && !errors.Is(err, redis.Nil):
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			case raw != "":
				var prior storedResponse
				if err := json.Unmarshal([]byte(raw), &prior); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replay(w, prior)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// server faults stay retryable under the same key
			if capture.status >= http.StatusInternalServerError {
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      capture.statusOrOK(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, prior storedResponse) {
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
