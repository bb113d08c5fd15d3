package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/kv"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/obs"
)

const (
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
	defaultIssuer       = "airwave"
	defaultAudience     = "airwave-api"
	defaultSessionLimit = 5
)

// TokenService issues, verifies, refreshes and revokes token pairs, and
// derives session-bound CSRF tokens. One instance is constructed at process
// start; it is stateless apart from its configuration and safe for concurrent
// use.
type TokenService struct {
	store UserStore
	kv    kv.Store
	now   func() time.Time

	// Separate secrets: compromise of one must not compromise the other.
	accessSecret  []byte
	refreshSecret []byte

	accessTTL    time.Duration
	refreshTTL   time.Duration
	issuer       string
	audience     string
	sessionLimit int
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
		return nil
	}
}

// WithAudience overrides the token audience claim.
func WithAudience(audience string) TokenOption {
	return func(s *TokenService) error {
		if v := strings.TrimSpace(audience); v != "" {
			s.audience = v
		}
		return nil
	}
}

// WithSessionLimit caps the number of live refresh tokens per user.
func WithSessionLimit(n int) TokenOption {
	return func(s *TokenService) error {
		if n > 0 {
			s.sessionLimit = n
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs the service. Both secrets are required and must
// differ; the refresh-token revocation index and access-token denylist live in
// the supplied key-value store.
func NewTokenService(store UserStore, kvStore kv.Store, accessSecret, refreshSecret string, opts ...TokenOption) (*TokenService, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("auth: access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	svc := &TokenService{
		store:         store,
		kv:            kvStore,
		now:           time.Now,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		issuer:        defaultIssuer,
		audience:      defaultAudience,
		sessionLimit:  defaultSessionLimit,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// AccessTTL reports the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueOverrides adjusts a single issuance. Zero values keep the configured
// defaults.
type IssueOverrides struct {
	TTL      time.Duration
	Issuer   string
	Audience string
}

// GenerateAccessToken signs an access token for the principal. The payload
// must carry userID, role, email and sessionID; issuedAt is stamped when
// absent.
func (s *TokenService) GenerateAccessToken(p Principal, overrides ...IssueOverrides) (string, error) {
	if p.UserID == "" || p.Role == "" || p.Email == "" || p.SessionID == "" {
		return "", fmt.Errorf("%w: access payload requires userID, role, email and sessionID", ErrInvalidToken)
	}
	ttl, issuer, audience := s.issueParams(s.accessTTL, overrides)

	now := s.now().UTC()
	issuedAt := now
	if p.IssuedAt > 0 {
		issuedAt = time.Unix(p.IssuedAt, 0).UTC()
	}
	claims := AccessClaims{
		UserID:      p.UserID,
		Email:       p.Email,
		Role:        p.Role,
		SessionID:   p.SessionID,
		IPAddress:   p.IPAddress,
		Fingerprint: p.Fingerprint,
		TokenType:   tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken signs a refresh token bound to a session, using the
// refresh secret.
func (s *TokenService) GenerateRefreshToken(userID, sessionID string, overrides ...IssueOverrides) (string, error) {
	if userID == "" || sessionID == "" {
		return "", fmt.Errorf("%w: refresh payload requires userID and sessionID", ErrInvalidToken)
	}
	ttl, issuer, audience := s.issueParams(s.refreshTTL, overrides)

	now := s.now().UTC()
	claims := RefreshClaims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// GenerateTokenPair creates a fresh session for the user: new random session
// id, access + refresh tokens, and a revocation-index entry for the refresh
// token. IP and fingerprint from reqCtx are recorded in the access token as
// audit signals only. A key-value store outage is logged and tolerated; the
// pair is still returned, at the cost of best-effort revocation until the
// store recovers.
func (s *TokenService) GenerateTokenPair(ctx context.Context, user User, reqCtx RequestContext) (TokenPair, error) {
	sessionID := uuid.NewString()
	now := s.now().UTC()

	principal := Principal{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		SessionID:   sessionID,
		IPAddress:   reqCtx.IPAddress,
		Fingerprint: reqCtx.Fingerprint,
		IssuedAt:    now.Unix(),
	}
	accessToken, err := s.GenerateAccessToken(principal)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := s.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.storeRefreshToken(ctx, user.ID, sessionID, refreshToken, now); err != nil {
		if !errors.Is(err, kv.ErrUnavailable) {
			return TokenPair{}, err
		}
		obs.LogRequest(map[string]any{
			"ts":      now.Format(time.RFC3339Nano),
			"level":   "warn",
			"msg":     "refresh index write skipped, store unavailable",
			"user_id": user.ID,
		})
	}

	obs.TokenIssued()
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		TokenType:    TokenTypeBearer,
	}, nil
}

// VerifyAccessToken checks signature and registered claims only; no store
// lookup. This is the fast path taken on every request.
func (s *TokenService) VerifyAccessToken(token string) (Principal, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.accessSecret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			obs.TokenFailure("expired")
			return Principal{}, ErrTokenExpired
		}
		obs.TokenFailure("invalid")
		return Principal{}, ErrInvalidToken
	}
	if !parsed.Valid || claims.TokenType != tokenTypeAccess || claims.UserID == "" || claims.SessionID == "" {
		obs.TokenFailure("invalid")
		return Principal{}, ErrInvalidToken
	}
	principal := Principal{
		UserID:      claims.UserID,
		Email:       claims.Email,
		Role:        claims.Role,
		SessionID:   claims.SessionID,
		IPAddress:   claims.IPAddress,
		Fingerprint: claims.Fingerprint,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Unix()
	}
	return principal, nil
}

// VerifyRefreshToken checks the signature, then requires the token's hash to
// be present in the revocation index. A cryptographically valid token whose
// index entry is gone counts as revoked. Store outage reads as "not found":
// refresh fails closed.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, token string) (userID, sessionID string, err error) {
	claims, err := s.parseRefreshClaims(token)
	if err != nil {
		return "", "", err
	}
	if _, err := s.kv.Get(ctx, refreshKey(hashToken(token))); err != nil {
		obs.TokenFailure("revoked")
		return "", "", fmt.Errorf("%w: refresh token revoked", ErrInvalidToken)
	}
	return claims.UserID, claims.SessionID, nil
}

// RefreshAccessToken exchanges a valid refresh token for a new access token
// bound to the same session. The user's role and email are re-read from the
// credential store so a role change takes effect here, unlike the frozen
// payload of an outstanding access token. The refresh token itself is
// returned unchanged; revocation-index removal stays the sole refresh
// invalidation mechanism.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, sessionID, err := s.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.store.Find(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	principal := Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID,
		IssuedAt:  s.now().UTC().Unix(),
	}
	accessToken, err := s.GenerateAccessToken(principal)
	if err != nil {
		return TokenPair{}, err
	}
	obs.TokenIssued()
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		TokenType:    TokenTypeBearer,
	}, nil
}

// RevokeRefreshToken removes a single refresh token from the revocation
// index. Unparseable tokens are ignored: logout is best-effort.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	claims, err := s.parseRefreshClaims(token)
	if err != nil {
		return nil
	}
	hash := hashToken(token)
	if err := s.kv.Delete(ctx, refreshKey(hash)); err != nil {
		return err
	}
	return s.kv.SRem(ctx, userRefreshSetKey(claims.UserID), hash)
}

// RevokeAllUserTokens drops every tracked refresh token for the user.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	setKey := userRefreshSetKey(userID)
	hashes, err := s.kv.SMembers(ctx, setKey)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, refreshKey(h))
	}
	keys = append(keys, setKey)
	return s.kv.Delete(ctx, keys...)
}

// DenylistAccessToken marks a specific access token as logged out for the
// remainder of its natural life. Covers the gap left by stateless access
// tokens, which cannot otherwise be revoked before expiry.
func (s *TokenService) DenylistAccessToken(ctx context.Context, token string) error {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.accessSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.ExpiresAt == nil {
		return nil
	}
	remaining := claims.ExpiresAt.Time.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	return s.kv.SetWithTTL(ctx, denylistKey(hashToken(token)), "1", remaining)
}

// IsAccessTokenDenylisted reports whether the exact token string was logged
// out early. Store outage reads as "not denylisted": requests keep flowing on
// signature validity alone.
func (s *TokenService) IsAccessTokenDenylisted(ctx context.Context, token string) bool {
	_, err := s.kv.Get(ctx, denylistKey(hashToken(token)))
	return err == nil
}

// GenerateCSRFToken derives the anti-forgery token for a session:
// HMAC-SHA256 over the session id, keyed by the access secret. Deterministic,
// so it needs no storage and stays valid exactly as long as the session.
func (s *TokenService) GenerateCSRFToken(sessionID string) string {
	mac := hmac.New(sha256.New, s.accessSecret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateCSRFToken recomputes the session's CSRF token and compares in
// constant time.
func (s *TokenService) ValidateCSRFToken(token, sessionID string) bool {
	if token == "" || sessionID == "" {
		return false
	}
	expected := s.GenerateCSRFToken(sessionID)
	if len(token) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// refreshIndexEntry is the value stored under a refresh token's hash.
type refreshIndexEntry struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	CreatedAt int64  `json:"created_at"`
}

func (s *TokenService) storeRefreshToken(ctx context.Context, userID, sessionID, token string, now time.Time) error {
	hash := hashToken(token)
	entry, err := json.Marshal(refreshIndexEntry{
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return err
	}
	if err := s.kv.SetWithTTL(ctx, refreshKey(hash), string(entry), s.refreshTTL); err != nil {
		return err
	}

	setKey := userRefreshSetKey(userID)
	if err := s.kv.SAdd(ctx, setKey, hash); err != nil {
		return err
	}
	if err := s.kv.ExpireAt(ctx, setKey, now.Add(s.refreshTTL)); err != nil {
		return err
	}
	return s.enforceSessionLimit(ctx, setKey)
}

// enforceSessionLimit evicts the oldest tracked refresh hashes beyond the
// cap. Insertion order only; last use is not tracked. Two concurrent logins
// may briefly exceed the cap by one, which is fine: the cap is resource
// control, not a security boundary.
func (s *TokenService) enforceSessionLimit(ctx context.Context, setKey string) error {
	hashes, err := s.kv.SMembers(ctx, setKey)
	if err != nil {
		return err
	}
	for len(hashes) > s.sessionLimit {
		oldest := hashes[0]
		hashes = hashes[1:]
		if err := s.kv.Delete(ctx, refreshKey(oldest)); err != nil {
			return err
		}
		if err := s.kv.SRem(ctx, setKey, oldest); err != nil {
			return err
		}
	}
	return nil
}

func (s *TokenService) parseRefreshClaims(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.refreshSecret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			obs.TokenFailure("expired")
			return nil, ErrTokenExpired
		}
		obs.TokenFailure("invalid")
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.TokenType != tokenTypeRefresh || claims.UserID == "" || claims.SessionID == "" {
		obs.TokenFailure("invalid")
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) issueParams(defaultTTL time.Duration, overrides []IssueOverrides) (time.Duration, string, string) {
	ttl, issuer, audience := defaultTTL, s.issuer, s.audience
	for _, o := range overrides {
		if o.TTL > 0 {
			ttl = o.TTL
		}
		if o.Issuer != "" {
			issuer = o.Issuer
		}
		if o.Audience != "" {
			audience = o.Audience
		}
	}
	return ttl, issuer, audience
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func refreshKey(hash string) string          { return "refresh:" + hash }
func denylistKey(hash string) string         { return "denylist:" + hash }
func userRefreshSetKey(userID string) string { return "user:" + userID + ":refresh" }
