package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tom2tomtomtom/airwave-redbaez-sub002/internal/kv"
)

func TestGetRolePermissionsBuiltinsAndOverrides(t *testing.T) {
	ctx := context.Background()
	store := newStubUserStore()
	svc := NewPermissionService(store, kv.NewMemory())

	viewer, err := svc.GetRolePermissions(ctx, RoleViewer)
	if err != nil {
		t.Fatalf("GetRolePermissions: %v", err)
	}
	if !contains(viewer, PermAssetRead) || contains(viewer, PermAssetCreate) {
		t.Fatalf("unexpected viewer defaults: %v", viewer)
	}

	admin, _ := svc.GetRolePermissions(ctx, RoleAdmin)
	for _, p := range viewer {
		if !contains(admin, p) {
			t.Fatalf("admin must be a superset of viewer; missing %s", p)
		}
	}

	unknown, err := svc.GetRolePermissions(ctx, "auditor")
	if err != nil || len(unknown) != 0 {
		t.Fatalf("unknown role must resolve to empty: %v, %v", unknown, err)
	}

	store.roleOverrides = map[string][]string{RoleViewer: {PermAssetRead}}
	overridden, err := svc.GetRolePermissions(ctx, RoleViewer)
	if err != nil {
		t.Fatalf("GetRolePermissions: %v", err)
	}
	if len(overridden) != 1 || overridden[0] != PermAssetRead {
		t.Fatalf("store override must win: %v", overridden)
	}
}

func TestGetUserPermissionsCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	user := testUser()
	store := newStubUserStore(user)
	svc := NewPermissionService(store, kv.NewMemory())

	first, err := svc.GetUserPermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}
	if store.findCalls != 1 {
		t.Fatalf("expected one store lookup, got %d", store.findCalls)
	}

	second, err := svc.GetUserPermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}
	if store.findCalls != 1 {
		t.Fatalf("second call within TTL must be served from cache, got %d lookups", store.findCalls)
	}
	if len(first) != len(second) {
		t.Fatalf("cache returned different permissions: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cache returned different permissions: %v vs %v", first, second)
		}
	}
}

func TestGetUserPermissionsStaleEntryRecomputed(t *testing.T) {
	ctx := context.Background()
	user := testUser()
	store := newStubUserStore(user)

	now := time.Now()
	svc := NewPermissionService(store, kv.NewMemory(),
		WithPermissionClock(func() time.Time { return now }))

	if _, err := svc.GetUserPermissions(ctx, user.ID); err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := svc.GetUserPermissions(ctx, user.ID); err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}
	if store.findCalls != 2 {
		t.Fatalf("stale cache entry must force a live lookup, got %d lookups", store.findCalls)
	}
}

func TestInvalidateForcesFreshLookup(t *testing.T) {
	ctx := context.Background()
	user := testUser()
	store := newStubUserStore(user)
	svc := NewPermissionService(store, kv.NewMemory())

	if _, err := svc.GetUserPermissions(ctx, user.ID); err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}
	if err := svc.InvalidateUserPermissionsCache(ctx, user.ID); err != nil {
		t.Fatalf("InvalidateUserPermissionsCache: %v", err)
	}
	if _, err := svc.GetUserPermissions(ctx, user.ID); err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}
	if store.findCalls != 2 {
		t.Fatalf("invalidation must force a fresh lookup even within TTL, got %d lookups", store.findCalls)
	}
}

func TestRolePromotionScenario(t *testing.T) {
	ctx := context.Background()
	user := &User{ID: "u1", Email: "u1@example.com", Role: RoleViewer, Status: "active"}
	store := newStubUserStore(user)
	svc := NewPermissionService(store, kv.NewMemory())

	ok, err := svc.HasPermission(ctx, "u1", PermAssetCreate)
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("viewer must not hold asset:create")
	}

	if err := store.UpdateRole(ctx, "u1", RoleEditor); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if err := svc.InvalidateUserPermissionsCache(ctx, "u1"); err != nil {
		t.Fatalf("InvalidateUserPermissionsCache: %v", err)
	}

	ok, err = svc.HasPermission(ctx, "u1", PermAssetCreate)
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("editor must hold asset:create after cache invalidation")
	}
}

func TestCustomPermissionsUnionedAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	user := &User{
		ID:                "u2",
		Email:             "u2@example.com",
		Role:              RoleViewer,
		Status:            "active",
		CustomPermissions: []string{PermCampaignApprove, PermAssetRead},
	}
	svc := NewPermissionService(newStubUserStore(user), kv.NewMemory())

	perms, err := svc.GetUserPermissions(ctx, "u2")
	if err != nil {
		t.Fatalf("GetUserPermissions: %v", err)
	}
	if !contains(perms, PermCampaignApprove) {
		t.Fatalf("custom permission missing: %v", perms)
	}
	seen := make(map[string]int)
	for _, p := range perms {
		seen[p]++
	}
	if seen[PermAssetRead] != 1 {
		t.Fatalf("expected deduplicated set, got %v", perms)
	}
}

func TestHasAllAndAnyPermissions(t *testing.T) {
	ctx := context.Background()
	user := &User{ID: "u3", Email: "u3@example.com", Role: RoleEditor, Status: "active"}
	svc := NewPermissionService(newStubUserStore(user), kv.NewMemory())

	all, err := svc.HasAllPermissions(ctx, "u3", PermAssetRead, PermAssetCreate)
	if err != nil || !all {
		t.Fatalf("editor must hold both read and create: %v, %v", all, err)
	}
	all, _ = svc.HasAllPermissions(ctx, "u3", PermAssetRead, PermUserManage)
	if all {
		t.Fatal("editor must not hold user:manage")
	}
	any, _ := svc.HasAnyPermission(ctx, "u3", PermUserManage, PermAssetRead)
	if !any {
		t.Fatal("expected at least one held permission")
	}
	any, _ = svc.HasAnyPermission(ctx, "u3", PermUserManage, PermClientDelete)
	if any {
		t.Fatal("expected no held permission")
	}
}

func TestPermissionsFallThroughOnKVOutage(t *testing.T) {
	ctx := context.Background()
	user := testUser()
	store := newStubUserStore(user)
	svc := NewPermissionService(store, unavailableKV{})

	perms, err := svc.GetUserPermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("cache outage must fall through to live computation: %v", err)
	}
	if !contains(perms, PermAssetCreate) {
		t.Fatalf("unexpected permissions: %v", perms)
	}
}

func TestGetUserPermissionsMissingUser(t *testing.T) {
	svc := NewPermissionService(newStubUserStore(), kv.NewMemory())
	if _, err := svc.GetUserPermissions(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
