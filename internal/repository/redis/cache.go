package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through JSON cache for public read models (listings,
// events, profiles). A nil *Cache is valid and caches nothing.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

// lookup decodes the value under key. Redis errors and undecodable entries
// both count as a miss; a corrupt entry is dropped so the next load
// replaces it.
func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var out T

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return out, false
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		_ = c.rdb.Del(ctx, key).Err()
		var zero T
		return zero, false
	}

	return out, true
}

func (c *Cache) store(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetOrSetJSON returns the cached value for key, loading and storing it on
// a miss. Concurrent misses for the same key share one loader call. A nil
// cache always calls loader. Loader errors are returned as is and never
// cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if c == nil {
		return loader(ctx)
	}

	if v, ok := lookup[T](ctx, c, key); ok {
		return v, nil
	}

	shared, err, _ := c.sf.Do(key, func() (any, error) {
		if v, ok := lookup[T](ctx, c, key); ok {
			return v, nil
		}

		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		_ = c.store(ctx, key, v, ttl)

		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := shared.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache %s: %w", key, errUnexpectedType)
	}

	return v, nil
}

var errUnexpectedType = errors.New("unexpected cached type")

func (c *Cache) drop(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}

	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Cache) InvalidateListing(ctx context.Context, id uuid.UUID) error {
	return c.drop(ctx, KeyListing(id))
}

// InvalidateEvent drops the event detail and the event list.
func (c *Cache) InvalidateEvent(ctx context.Context, id uuid.UUID) error {
	return c.drop(ctx, KeyEvent(id), KeyEventList())
}

func (c *Cache) InvalidateUser(ctx context.Context, id uuid.UUID) error {
	return c.drop(ctx, KeyUserProfile(id))
}
