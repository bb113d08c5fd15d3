package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements Store on a Redis server. Set keys are stored as sorted
// sets scored by insertion time, which preserves the order SMembers needs.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis builds a Store over the given client options.
func NewRedis(opts *redis.Options) *Redis {
	return &Redis{client: redis.NewClient(opts), now: time.Now}
}

// NewRedisFromClient wraps an existing client (used by tests and callers that
// manage the client lifecycle themselves).
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", wrapUnavailable(err)
	}
	return val, nil
}

func (r *Redis) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) SAdd(ctx context.Context, key string, member string) error {
	z := redis.Z{Score: float64(r.now().UnixNano()), Member: member}
	if err := r.client.ZAdd(ctx, key, z).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) SRem(ctx context.Context, key string, member string) error {
	if err := r.client.ZRem(ctx, key, member).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return members, nil
}

func (r *Redis) ExpireAt(ctx context.Context, key string, at time.Time) error {
	if err := r.client.ExpireAt(ctx, key, at).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func wrapUnavailable(err error) error {
	return errors.Join(ErrUnavailable, err)
}
