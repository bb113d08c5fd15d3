package auth

import "errors"

var (
	// ErrAuthRequired means no credential was presented at all.
	ErrAuthRequired = errors.New("auth: authentication required")
	// ErrInvalidToken covers bad signature, malformed payload, wrong
	// issuer/audience/type, and revoked refresh tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired is a valid signature past its expiry. Kept distinct from
	// ErrInvalidToken so callers can trigger the refresh flow on it.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrPermissionDenied means authenticated but insufficient rights.
	ErrPermissionDenied = errors.New("auth: permission denied")
	// ErrNotFound means the backing user record does not exist.
	ErrNotFound = errors.New("auth: not found")
	// ErrForbidden is a CSRF validation failure.
	ErrForbidden = errors.New("auth: forbidden")
)
