package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated identity attached to a request. It is built
// from a verified access token on every request and never persisted.
type Principal struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	SessionID   string `json:"session_id"`
	IPAddress   string `json:"ip_address,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	IssuedAt    int64  `json:"issued_at"`
}

// TokenPair is the unit issued at login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// TokenTypeBearer is the constant token_type carried by every TokenPair.
const TokenTypeBearer = "Bearer"

// User is the credential-store record behind a principal.
type User struct {
	ID                string
	Email             string
	Role              string
	PasswordHash      string
	Status            string
	CustomPermissions []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RequestContext carries soft-binding signals captured at login. They are
// recorded in the access token for audit but never enforced on verification;
// users behind rotating IPs must not be locked out.
type RequestContext struct {
	IPAddress   string
	Fingerprint string
}

// AccessClaims is the closed claim set of an access token.
type AccessClaims struct {
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	SessionID   string `json:"sid"`
	IPAddress   string `json:"ip,omitempty"`
	Fingerprint string `json:"fp,omitempty"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the closed claim set of a refresh token.
type RefreshClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)
