package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
)

// tokenCookie is the HttpOnly cookie set at login so browser clients do not
// have to hold the access token in script-readable storage.
const tokenCookie = "airwave_token"

var authExemptPaths = map[string]bool{
	"/healthz":         true,
	"/readyz":          true,
	"/metrics":         true,
	"/v1/auth/login":   true,
	"/v1/auth/refresh": true,
}

// withAuth verifies the bearer token on every non-exempt request, checks the
// denylist, and attaches the principal to the context. It also stamps the
// response with the session's CSRF token so clients can replay it on writes.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || authExemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="airwave"`)
			a.handleAuthError(w, r, auth.ErrAuthRequired)
			return
		}

		principal, err := a.tokens.VerifyAccessToken(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="airwave", error="invalid_token"`)
			a.handleAuthError(w, r, err)
			return
		}
		if a.tokens.IsAccessTokenDenylisted(r.Context(), token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="airwave", error="invalid_token"`)
			a.handleAuthError(w, r, errors.Join(auth.ErrInvalidToken, errors.New("token revoked")))
			return
		}

		w.Header().Set("X-CSRF-Token", a.tokens.GenerateCSRFToken(principal.SessionID))

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the access token from the Authorization header,
// falling back to the login cookie.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}
