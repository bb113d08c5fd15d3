package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("Get: %q, %v", got, err)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	if err := store.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired key to read as missing, got %v", err)
	}
}

func TestMemorySetPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	for _, member := range []string{"first", "second", "third"} {
		if err := store.SAdd(ctx, "s", member); err != nil {
			t.Fatalf("SAdd: %v", err)
		}
	}
	// Re-adding must not move a member to the back.
	if err := store.SAdd(ctx, "s", "first"); err != nil {
		t.Fatalf("SAdd: %v", err)
	}

	members, err := store.SMembers(ctx, "s")
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(members) != len(want) {
		t.Fatalf("unexpected members: %v", members)
	}
	for i := range want {
		if members[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, members)
		}
	}

	if err := store.SRem(ctx, "s", "second"); err != nil {
		t.Fatalf("SRem: %v", err)
	}
	members, _ = store.SMembers(ctx, "s")
	if len(members) != 2 || members[0] != "first" || members[1] != "third" {
		t.Fatalf("unexpected members after SRem: %v", members)
	}
}
