package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/kv"
)

func TestAuthRequiredOnProtectedRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatal("WWW-Authenticate header missing")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "authentication_required" {
		t.Fatalf("unexpected error code: %v", body["code"])
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/auth/me", nil, withBearer("not.a.token"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestValidTokenReachesMe(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t, "casey@example.com")

	rec := env.do(t, http.MethodGet, "/v1/auth/me", nil, withBearer(resp.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["user_id"] != "user-1" || body["role"] != auth.RoleEditor {
		t.Fatalf("unexpected identity: %v", body)
	}
	perms, ok := body["permissions"].([]any)
	if !ok || len(perms) == 0 {
		t.Fatalf("expected non-empty permissions, got %v", body["permissions"])
	}
	if got := rec.Header().Get("X-CSRF-Token"); got != resp.CSRFToken {
		t.Fatalf("response CSRF token %q does not match login token %q", got, resp.CSRFToken)
	}
}

func TestCookieTokenAccepted(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t, "casey@example.com")

	rec := env.do(t, http.MethodGet, "/v1/auth/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: tokenCookie, Value: resp.AccessToken})
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestExpiredTokenReportsTokenExpired(t *testing.T) {
	env := newTestEnv(t)

	past := time.Now().Add(-20 * time.Minute)
	backdated, err := auth.NewTokenService(env.store, kv.NewMemory(),
		"httpapi-access-secret", "httpapi-refresh-secret",
		auth.WithClock(func() time.Time { return past }))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	token, err := backdated.GenerateAccessToken(auth.Principal{
		UserID:    "user-1",
		Email:     "casey@example.com",
		Role:      auth.RoleEditor,
		SessionID: "sess-old",
	})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/v1/auth/me", nil, withBearer(token))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "token_expired" {
		t.Fatalf("unexpected error code: %v", body["code"])
	}
}

func TestDenylistedTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t, "casey@example.com")

	rec := env.do(t, http.MethodPost, "/v1/auth/logout", logoutRequest{RefreshToken: resp.RefreshToken},
		withBearer(resp.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/auth/me", nil, withBearer(resp.AccessToken))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status after logout = %d, want 401", rec.Code)
	}
}
