// Package cache provides a Redis-backed read cache for query results.
// The cache is an accelerator only: every caller falls back to the source
// of truth when a key is missing, the cache is disabled, or Redis fails.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/vmgatelabs/vmgate/internal/core"
)

// RedisCache provides caching using Redis.
type RedisCache struct {
	client  *redis.Client
	enabled bool
}

// Config holds the Redis connection settings.
type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Disabled returns a cache whose Get always misses and whose Set and Delete
// do nothing. It is the fallback when Redis cannot be reached at startup.
func Disabled() *RedisCache {
	return &RedisCache{enabled: false}
}

// NewRedisCache creates a new Redis cache. A disabled config yields a cache
// whose Get always misses and whose Set and Delete do nothing.
func NewRedisCache(cfg Config) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
	}, nil
}

// Get retrieves a value from cache and unmarshals it into value.
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return errors.New("cache is disabled")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return errors.Wrap(err, "key not found in cache")
		}
		return errors.Wrap(err, "failed to get value from Redis")
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}

	return nil
}

// Set stores a value in cache with optional expiration.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	err = c.client.Set(ctx, key, data, expiration).Err()
	if err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// Delete removes keys from the cache. Missing keys are not an error.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled || len(keys) == 0 {
		return nil
	}

	err := c.client.Del(ctx, keys...).Err()
	if err != nil {
		return errors.Wrap(err, "failed to delete keys from Redis")
	}

	return nil
}

// RequestListCacheKey generates the cache key for a tenant's request list,
// one key per status filter. An empty status means the unfiltered list.
func RequestListCacheKey(tenantID uuid.UUID, status string) string {
	if status == "" {
		return fmt.Sprintf("requests:%s", tenantID.String())
	}
	return fmt.Sprintf("requests:%s:%s", tenantID.String(), status)
}

// RequestListCacheKeys returns every key a tenant's request list can be
// cached under. Projection writes delete them all so readers never see a
// stale list.
func RequestListCacheKeys(tenantID uuid.UUID) []string {
	keys := []string{RequestListCacheKey(tenantID, "")}
	for _, status := range core.AllStatuses() {
		keys = append(keys, RequestListCacheKey(tenantID, string(status)))
	}
	return keys
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}
