package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfloor-backend/pkg/auth"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
)

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func mintToken(t *testing.T, cfg config.JWTConfig, role enums.Role) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Name:   "Sam Reyes",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsForeignSecret(t *testing.T) {
	other := testJWT()
	other.Secret = "another-secret"
	token, _ := mintToken(t, other, enums.RoleManager)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(testJWT(), nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsActor(t *testing.T) {
	cfg := testJWT()
	token, userID := mintToken(t, cfg, enums.RoleTechnician)

	var seen bool
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Fatalf("expected actor in context")
		}
		if actor.ID != userID || actor.Name != "Sam Reyes" || actor.Role != enums.RoleTechnician {
			t.Fatalf("unexpected actor %+v", actor)
		}
		if UserIDFromContext(r.Context()) != userID.String() {
			t.Fatalf("user id helper mismatch")
		}
		seen = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || !seen {
		t.Fatalf("expected 200 with handler invoked, got %d", resp.Code)
	}
}

func TestRequireBillingRoles(t *testing.T) {
	cfg := testJWT()
	cases := []struct {
		role enums.Role
		want int
	}{
		{enums.RoleAdmin, http.StatusOK},
		{enums.RoleManager, http.StatusOK},
		{enums.RoleTechnician, http.StatusForbidden},
	}

	for _, tc := range cases {
		token, _ := mintToken(t, cfg, tc.role)
		handler := Auth(cfg, nil)(RequireBilling(nil)(okHandler()))

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("role %s: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}

func TestRequireRoleWithoutActor(t *testing.T) {
	resp := httptest.NewRecorder()
	RequireInventoryManager(nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
