package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/auth"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeErrorCode adds a machine-readable code so clients can branch, e.g.
// trigger the refresh flow on token_expired.
func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"error": msg,
		"code":  code,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, status, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

var errEmptyBody = errors.New("request body is required")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleAuthError maps auth sentinels onto HTTP statuses: 401 for credential
// problems, 403 for rights/CSRF, 404 for vanished users.
func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		writeErrorCode(w, r, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, auth.ErrAuthRequired):
		writeErrorCode(w, r, http.StatusUnauthorized, "authentication_required", "authentication required")
	case errors.Is(err, auth.ErrInvalidToken):
		writeErrorCode(w, r, http.StatusUnauthorized, "invalid_token", "invalid token")
	case errors.Is(err, auth.ErrPermissionDenied):
		writeErrorCode(w, r, http.StatusForbidden, "permission_denied", "permission denied")
	case errors.Is(err, auth.ErrForbidden):
		writeErrorCode(w, r, http.StatusForbidden, "csrf_failed", "forbidden")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		msg := "internal error"
		if !a.production {
			msg = err.Error()
		}
		writeError(w, r, http.StatusInternalServerError, msg)
	}
}
