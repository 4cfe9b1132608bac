// Package cache holds short-lived lookups shared between API instances.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const urlPrefix = "muvico:url:"

// RedisURLCache stores signed media URLs in Redis.
type RedisURLCache struct {
	client *redis.Client
}

// NewRedisURLCache connects to the Redis instance at rawURL and verifies the
// connection.
func NewRedisURLCache(ctx context.Context, rawURL string) (*RedisURLCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisURLCache{client: client}, nil
}

// Get returns the cached URL for key. A miss is not an error.
func (c *RedisURLCache) Get(ctx context.Context, key string) (string, bool, error) {
	url, err := c.client.Get(ctx, urlPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return url, true, nil
}

func (c *RedisURLCache) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	if err := c.client.Set(ctx, urlPrefix+key, url, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisURLCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, urlPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisURLCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisURLCache) Close() error {
	return c.client.Close()
}

// NopURLCache never stores anything.
type NopURLCache struct{}

func (NopURLCache) Get(context.Context, string) (string, bool, error)        { return "", false, nil }
func (NopURLCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (NopURLCache) Delete(context.Context, string) error                     { return nil }
