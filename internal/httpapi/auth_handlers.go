package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/audit"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	CSRFToken    string `json:"csrf_token"`
}

func (a *API) tokenResponse(pair auth.TokenPair, sessionID string) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    pair.TokenType,
		CSRFToken:    a.tokens.GenerateCSRFToken(sessionID),
	}
}

func (a *API) setTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   a.production,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.production,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeErrorCode(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		a.handleAuthError(w, r, err)
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeErrorCode(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if user.Status != "" && user.Status != "active" {
		writeErrorCode(w, r, http.StatusForbidden, "account_disabled", "account is not active")
		return
	}

	pair, err := a.tokens.GenerateTokenPair(r.Context(), *user, auth.RequestContext{
		IPAddress:   clientIP(r),
		Fingerprint: r.Header.Get("X-Fingerprint"),
	})
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	principal, err := a.tokens.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(auth.ContextWithPrincipal(r.Context(), principal), "auth.login", map[string]any{
		"email": user.Email,
		"ip":    clientIP(r),
	})

	a.setTokenCookie(w, pair.AccessToken, a.tokens.AccessTTL())
	writeJSON(w, http.StatusOK, a.tokenResponse(pair, principal.SessionID))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := a.tokens.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	principal, err := a.tokens.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(auth.ContextWithPrincipal(r.Context(), principal), "auth.refresh", nil)

	a.setTokenCookie(w, pair.AccessToken, a.tokens.AccessTTL())
	writeJSON(w, http.StatusOK, a.tokenResponse(pair, principal.SessionID))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	// Logout accepts an empty body; the access token alone is enough to
	// tear down the browser session.
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.RefreshToken != "" {
		if err := a.tokens.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
			a.handleAuthError(w, r, err)
			return
		}
	}
	if access, ok := auth.TokenFromContext(r.Context()); ok {
		if err := a.tokens.DenylistAccessToken(r.Context(), access); err != nil {
			a.handleAuthError(w, r, err)
			return
		}
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", nil)

	a.clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		a.handleAuthError(w, r, auth.ErrAuthRequired)
		return
	}

	if err := a.tokens.RevokeAllUserTokens(r.Context(), principal.UserID); err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	if access, ok := auth.TokenFromContext(r.Context()); ok {
		if err := a.tokens.DenylistAccessToken(r.Context(), access); err != nil {
			a.handleAuthError(w, r, err)
			return
		}
	}

	_ = audit.LogEvent(r.Context(), "auth.logout_all", nil)

	a.clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out_all"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		a.handleAuthError(w, r, auth.ErrAuthRequired)
		return
	}

	perms, err := a.perms.GetUserPermissions(r.Context(), principal.UserID)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     principal.UserID,
		"email":       principal.Email,
		"role":        principal.Role,
		"session_id":  principal.SessionID,
		"permissions": perms,
	})
}
