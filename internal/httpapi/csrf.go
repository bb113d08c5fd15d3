package httpapi

import (
	"net/http"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
)

// csrfExemptPaths are auth flows that carry their own proof of possession
// (credentials or the refresh token itself), so double-submit does not apply.
var csrfExemptPaths = map[string]bool{
	"/v1/auth/login":      true,
	"/v1/auth/refresh":    true,
	"/v1/auth/logout":     true,
	"/v1/auth/logout_all": true,
}

func mutatingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// withCSRF requires a valid X-CSRF-Token on state-changing requests. The token
// is derived from the session, so it stays stable for the session's lifetime
// and dies with it.
func (a *API) withCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mutatingMethod(r.Method) || csrfExemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			a.handleAuthError(w, r, auth.ErrAuthRequired)
			return
		}
		token := r.Header.Get("X-CSRF-Token")
		if token == "" || !a.tokens.ValidateCSRFToken(token, principal.SessionID) {
			a.handleAuthError(w, r, auth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
