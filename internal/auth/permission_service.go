package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/kv"
	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/obs"
)

const permissionCacheTTL = 15 * time.Minute

// PermissionService resolves a user's effective permission set: role defaults
// unioned with per-user overrides, cached in the key-value store. Cache
// failures fall through to live computation; availability wins over cache
// correctness here.
type PermissionService struct {
	store UserStore
	kv    kv.Store
	now   func() time.Time
	ttl   time.Duration
}

// PermissionOption configures PermissionService behavior.
type PermissionOption func(*PermissionService)

// WithPermissionCacheTTL overrides the cache freshness window.
func WithPermissionCacheTTL(ttl time.Duration) PermissionOption {
	return func(s *PermissionService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPermissionClock overrides the time source (useful for tests).
func WithPermissionClock(fn func() time.Time) PermissionOption {
	return func(s *PermissionService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewPermissionService constructs the service.
func NewPermissionService(store UserStore, kvStore kv.Store, opts ...PermissionOption) *PermissionService {
	svc := &PermissionService{
		store: store,
		kv:    kvStore,
		now:   time.Now,
		ttl:   permissionCacheTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// permissionCacheEntry is the JSON value under user:{id}:permissions.
type permissionCacheEntry struct {
	Permissions []string `json:"permissions"`
	Timestamp   int64    `json:"timestamp"`
}

// GetRolePermissions returns the permission set for a role: the credential
// store's override when one exists, otherwise the builtin table. Unknown
// roles resolve to an empty set.
func (s *PermissionService) GetRolePermissions(ctx context.Context, role string) ([]string, error) {
	override, err := s.store.RolePermissions(ctx, role)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if len(override) > 0 {
		return override, nil
	}
	return DefaultRolePermissions(role), nil
}

// GetUserPermissions returns the user's effective permissions, serving from
// cache when the entry is within its TTL. On miss, staleness or a cache
// outage it computes live from the credential store and writes back
// best-effort. A missing user is a hard error.
func (s *PermissionService) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	cacheKey := permissionCacheKey(userID)

	if raw, err := s.kv.Get(ctx, cacheKey); err == nil {
		var entry permissionCacheEntry
		if jsonErr := json.Unmarshal([]byte(raw), &entry); jsonErr == nil {
			age := s.now().Unix() - entry.Timestamp
			if age >= 0 && time.Duration(age)*time.Second < s.ttl {
				obs.PermissionCache("hit")
				return entry.Permissions, nil
			}
			obs.PermissionCache("stale")
		}
	} else {
		obs.PermissionCache("miss")
	}

	perms, err := s.computePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	entry, err := json.Marshal(permissionCacheEntry{
		Permissions: perms,
		Timestamp:   s.now().Unix(),
	})
	if err == nil {
		// Write-back is best-effort; a cache outage must not fail the request.
		_ = s.kv.SetWithTTL(ctx, cacheKey, string(entry), s.ttl)
	}
	return perms, nil
}

// HasPermission reports whether the user's effective set contains perm.
func (s *PermissionService) HasPermission(ctx context.Context, userID, perm string) (bool, error) {
	perms, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return contains(perms, perm), nil
}

// HasAllPermissions reports whether every listed permission is held.
func (s *PermissionService) HasAllPermissions(ctx context.Context, userID string, required ...string) (bool, error) {
	perms, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range required {
		if !contains(perms, p) {
			return false, nil
		}
	}
	return true, nil
}

// HasAnyPermission reports whether at least one listed permission is held.
func (s *PermissionService) HasAnyPermission(ctx context.Context, userID string, candidates ...string) (bool, error) {
	perms, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range candidates {
		if contains(perms, p) {
			return true, nil
		}
	}
	return false, nil
}

// InvalidateUserPermissionsCache drops the cache entry. Every code path that
// mutates a user's role or custom permissions must call this.
func (s *PermissionService) InvalidateUserPermissionsCache(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, permissionCacheKey(userID))
}

// computePermissions unions role defaults with per-user overrides,
// deduplicated and sorted.
func (s *PermissionService) computePermissions(ctx context.Context, userID string) ([]string, error) {
	user, err := s.store.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	rolePerms, err := s.GetRolePermissions(ctx, user.Role)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(rolePerms)+len(user.CustomPermissions))
	for _, p := range rolePerms {
		set[p] = struct{}{}
	}
	for _, p := range user.CustomPermissions {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func contains(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

func permissionCacheKey(userID string) string { return "user:" + userID + ":permissions" }
