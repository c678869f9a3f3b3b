package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is an Engine storing JSON encoded values in redis under a key
// prefix. Values read back are the JSON decoded form of what was stored.
type RedisCache struct {
	options *redis.Options
	prefix  string
	logger  Logger
	client  *redis.Client
}

// NewRedisCache creates a redis engine for url. Keys are stored as
// <prefix>:<key>.
func NewRedisCache(url, prefix string, logger Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRedisURL, err)
	}
	return &RedisCache{options: opts, prefix: prefix, logger: logger}, nil
}

// Connect implements Engine.
func (c *RedisCache) Connect(ctx context.Context) error {
	client := redis.NewClient(c.options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis cache: %w", err)
	}
	c.client = client
	return nil
}

// Close implements Engine.
func (c *RedisCache) Close(_ context.Context) error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

// Get implements Engine.
func (c *RedisCache) Get(ctx context.Context, key string) (any, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn("Redis cache value is not valid JSON", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

// Set implements Engine.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.client == nil {
		return ErrNotConnected
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeValue, err)
	}
	return c.client.Set(ctx, c.key(key), raw, ttl).Err()
}

// Delete implements Engine.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if c.client == nil {
		return ErrNotConnected
	}
	return c.client.Del(ctx, c.key(key)).Err()
}

// Flush removes every key under the prefix.
func (c *RedisCache) Flush(ctx context.Context) error {
	if c.client == nil {
		return ErrNotConnected
	}
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
