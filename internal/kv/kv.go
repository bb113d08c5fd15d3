package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound = errors.New("kv: not found")
	// ErrUnavailable indicates the backing store could not be reached.
	// Callers decide whether to fail open or closed; see the auth package.
	ErrUnavailable = errors.New("kv: unavailable")
)

// Store abstracts the ephemeral key/value/set store backing the refresh-token
// revocation index, the access-token denylist and the permission cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// Set operations, used for the per-user refresh index. SMembers returns
	// members in insertion order so the oldest entry can be evicted first.
	SAdd(ctx context.Context, key string, member string) error
	SRem(ctx context.Context, key string, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	ExpireAt(ctx context.Context, key string, at time.Time) error
	Ping(ctx context.Context) error
}
