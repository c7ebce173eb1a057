package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level Redis failures so callers can
// distinguish them from missing keys.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Redis is a [Store] backed by a Redis client, for headless clients that
// need credential persistence across processes.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed store. All keys are namespaced under
// prefix; an empty prefix defaults to "monauth:".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "monauth:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

// Get returns the value for key. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, true, nil
}

// Set stores value under key. Only [WithTTL] is honored; path scoping has no
// Redis equivalent and is ignored.
func (r *Redis) Set(ctx context.Context, key, value string, opts ...SetOption) error {
	o := ApplyOptions(opts)
	if err := r.client.Set(ctx, r.key(key), value, o.TTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is a no-op.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
