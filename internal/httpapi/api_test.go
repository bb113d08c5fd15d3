package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/kv"
)

const testPassword = "opensesame-42"

type stubStore struct {
	users map[string]*auth.User
}

func newStubStore(users ...*auth.User) *stubStore {
	s := &stubStore{users: make(map[string]*auth.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubStore) Find(_ context.Context, id string) (*auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *stubStore) RolePermissions(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (s *stubStore) UpdateRole(_ context.Context, userID, role string) error {
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.Role = role
	return nil
}

type testEnv struct {
	api     *API
	handler http.Handler
	store   *stubStore
	kv      *kv.Memory
	tokens  *auth.TokenService
}

func newTestEnv(t *testing.T, users ...*auth.User) *testEnv {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if len(users) == 0 {
		users = []*auth.User{
			{ID: "user-1", Email: "casey@example.com", Role: auth.RoleEditor, Status: "active"},
			{ID: "admin-1", Email: "admin@example.com", Role: auth.RoleAdmin, Status: "active"},
		}
	}
	for _, u := range users {
		if u.PasswordHash == "" {
			u.PasswordHash = hash
		}
	}

	store := newStubStore(users...)
	mem := kv.NewMemory()
	tokens, err := auth.NewTokenService(store, mem, "httpapi-access-secret", "httpapi-refresh-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	perms := auth.NewPermissionService(store, mem)

	api := New(Options{
		Tokens:  tokens,
		Perms:   perms,
		Users:   store,
		Version: "test",
	})
	return &testEnv{
		api:     api,
		handler: api.Handler(),
		store:   store,
		kv:      mem,
		tokens:  tokens,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

// login runs the full login flow and returns the decoded token response.
func (env *testEnv) login(t *testing.T, email string) tokenResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/auth/login", loginRequest{Email: email, Password: testPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestHealthzNoAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected healthz body: %v", body)
	}
}

func TestReadyzWithoutProbesIsReady(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", rec.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)
	resp := env.login(t, "casey@example.com")
	rec := env.do(t, http.MethodGet, "/v1/nope", nil, withBearer(resp.AccessToken))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
