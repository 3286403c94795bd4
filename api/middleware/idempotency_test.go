package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
	"github.com/angelmondragon/shopfloor-backend/pkg/types"
)

// memoryStore is an in-process stand-in for the redis idempotency store.
type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], m.ttls[key] = value.(string), ttl
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

type idemCall struct {
	path  string
	key   string
	body  string
	actor *types.Actor
}

func serveGuarded(h http.Handler, call idemCall) *httptest.ResponseRecorder {
	path := call.path
	if path == "" {
		path = "/api/v1/work-orders"
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(call.body))
	if call.key != "" {
		req.Header.Set(idempotencyHeader, call.key)
	}
	if call.actor != nil {
		req = req.WithContext(WithActor(req.Context(), *call.actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// countingHandler answers with status and counts how often it ran.
func countingHandler(status int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
	})
}

func TestRouteTTLSelection(t *testing.T) {
	cases := []struct {
		method string
		path   string
		ttl    time.Duration
		ok     bool
	}{
		{http.MethodPost, "/api/v1/work-orders", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/work-orders/", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/work-orders/3f1c/transition", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/work-orders/3f1c/timers", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/timers/aa01/stop", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/inventory/9a2e/restock", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/work-orders/3f1c/invoice", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/invoices", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/invoices/77aa/pay", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/invoices/77aa/cancel", criticalIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/work-orders", 0, false},
		{http.MethodPost, "/api/v1/work-orders/3f1c/assign", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/invoices/77aa/send", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/invoices/77aa/send/again", 0, false},
		{http.MethodPost, "/api/v1/work-orders/3f1c/parts/9a2e/transition", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := routeTTL(tc.method, tc.path)
		assert.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.path)
		assert.Equal(t, tc.ttl, ttl, "%s %s", tc.method, tc.path)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	var calls int
	h := Idempotency(newMemoryStore(), nil)(countingHandler(http.StatusCreated, &calls))

	rec := serveGuarded(h, idemCall{body: `{}`})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newMemoryStore()
	var calls int
	h := Idempotency(store, nil)(countingHandler(http.StatusCreated, &calls))

	first := serveGuarded(h, idemCall{key: "wo-create-1", body: `{"description":"brakes"}`})
	second := serveGuarded(h, idemCall{key: "wo-create-1", body: `{"description":"brakes"}`})

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Empty(t, first.Header().Get(replayedHeader))
	assert.Equal(t, 1, calls)
	for _, ttl := range store.ttls {
		assert.Equal(t, defaultIdempotencyTTL, ttl)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	var calls int
	h := Idempotency(newMemoryStore(), nil)(countingHandler(http.StatusOK, &calls))

	serveGuarded(h, idemCall{key: "k1", body: `{"quantity":2}`})
	rec := serveGuarded(h, idemCall{key: "k1", body: `{"quantity":3}`})

	require.Equal(t, http.StatusConflict, rec.Code)
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), env.Error.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyDoesNotStoreServerFaults(t *testing.T) {
	store := newMemoryStore()
	var calls int
	h := Idempotency(store, nil)(countingHandler(http.StatusServiceUnavailable, &calls))

	serveGuarded(h, idemCall{key: "retry-me", body: `{}`})
	serveGuarded(h, idemCall{key: "retry-me", body: `{}`})

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyStoresDomainRejections(t *testing.T) {
	var calls int
	h := Idempotency(newMemoryStore(), nil)(countingHandler(http.StatusConflict, &calls))

	serveGuarded(h, idemCall{path: "/api/v1/invoices/77aa/pay", key: "pay-1", body: `{"method":"card"}`})
	rec := serveGuarded(h, idemCall{path: "/api/v1/invoices/77aa/pay", key: "pay-1", body: `{"method":"card"}`})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyScopeIsPerActor(t *testing.T) {
	var calls int
	h := Idempotency(newMemoryStore(), nil)(countingHandler(http.StatusCreated, &calls))

	for i := 0; i < 2; i++ {
		actor := types.Actor{ID: uuid.New(), Name: "Tech", Role: enums.RoleTechnician}
		serveGuarded(h, idemCall{key: "shared", body: `{}`, actor: &actor})
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	store := newMemoryStore()
	var calls int
	h := Idempotency(store, nil)(countingHandler(http.StatusOK, &calls))

	rec := serveGuarded(h, idemCall{path: "/api/v1/work-orders/3f1c/notes", body: `{}`})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.data)
}

func TestIdempotencyWithoutStorePassesThrough(t *testing.T) {
	var calls int
	h := Idempotency(nil, nil)(countingHandler(http.StatusCreated, &calls))

	rec := serveGuarded(h, idemCall{body: `{}`})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}
