package httpapi

import (
	"net/http"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
)

// requirePermission gates a handler on a single permission resolved through
// the permission cache.
func (a *API) requirePermission(perm string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="airwave"`)
			a.handleAuthError(w, r, auth.ErrAuthRequired)
			return
		}
		allowed, err := a.perms.HasPermission(r.Context(), principal.UserID, perm)
		if err != nil {
			a.handleAuthError(w, r, err)
			return
		}
		if !allowed {
			a.handleAuthError(w, r, auth.ErrPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAnyPermission gates a handler on at least one of the listed
// permissions.
func (a *API) requireAnyPermission(perms []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="airwave"`)
			a.handleAuthError(w, r, auth.ErrAuthRequired)
			return
		}
		allowed, err := a.perms.HasAnyPermission(r.Context(), principal.UserID, perms...)
		if err != nil {
			a.handleAuthError(w, r, err)
			return
		}
		if !allowed {
			a.handleAuthError(w, r, auth.ErrPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}
