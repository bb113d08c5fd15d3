package httpapi

import (
	"net/http"
	"strings"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/audit"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
)

type roleUpdateRequest struct {
	Role string `json:"role"`
}

// handleUserResource routes /v1/users/{id}/... subpaths. Only role updates
// are exposed for now.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 2 && parts[1] == "role" && parts[0] != "" {
		a.handleRoleUpdate(w, r, parts[0])
		return
	}
	http.NotFound(w, r)
}

func (a *API) handleRoleUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}

	var req roleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role := strings.TrimSpace(req.Role)
	if auth.DefaultRolePermissions(role) == nil {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}

	if err := a.users.UpdateRole(r.Context(), userID, role); err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	// Drop the cached permission set so the new role takes effect on the
	// next permission check rather than after the cache TTL.
	if err := a.perms.InvalidateUserPermissionsCache(r.Context(), userID); err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.role.changed", map[string]any{
		"target_user_id": userID,
		"new_role":       role,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"role":    role,
	})
}
