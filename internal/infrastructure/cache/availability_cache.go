package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appstock "github.com/elysium/backend/internal/application/stock"
	"github.com/redis/go-redis/v9"
)

const defaultAvailabilityTTL = 5 * time.Second

// RedisAvailabilityCache caches availability snapshots in Redis so
// storefront badge reads can be served without touching the database.
// Suitable for distributed deployments where multiple instances share
// cache state; a missed invalidation is bounded by the entry TTL.
type RedisAvailabilityCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisAvailabilityCache creates a Redis-backed availability cache
func NewRedisAvailabilityCache(cfg RedisConfig, ttl time.Duration) (*RedisAvailabilityCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisAvailabilityCacheWithClient(client, ttl), nil
}

// NewRedisAvailabilityCacheWithClient creates a cache with an existing
// Redis client. Useful for testing or sharing a client across components.
func NewRedisAvailabilityCacheWithClient(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = defaultAvailabilityTTL
	}
	return &RedisAvailabilityCache{
		client:    client,
		keyPrefix: "stock:availability:",
		ttl:       ttl,
	}
}

// Get returns the cached snapshot for a variant, or nil on a cache miss
func (c *RedisAvailabilityCache) Get(ctx context.Context, productKey, variantKey string) (*appstock.AvailabilitySnapshot, error) {
	payload, err := c.client.Get(ctx, c.key(productKey, variantKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read availability snapshot: %w", err)
	}

	var snapshot appstock.AvailabilitySnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode availability snapshot: %w", err)
	}
	return &snapshot, nil
}

// Set stores a snapshot with the configured TTL
func (c *RedisAvailabilityCache) Set(ctx context.Context, snapshot *appstock.AvailabilitySnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode availability snapshot: %w", err)
	}

	if err := c.client.Set(ctx, c.key(snapshot.ProductKey, snapshot.VariantKey), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache availability snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for a variant
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, productKey, variantKey string) error {
	if err := c.client.Del(ctx, c.key(productKey, variantKey)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate availability snapshot: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection is alive
func (c *RedisAvailabilityCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisAvailabilityCache) Close() error {
	return c.client.Close()
}

func (c *RedisAvailabilityCache) key(productKey, variantKey string) string {
	return c.keyPrefix + productKey + ":" + variantKey
}

// Ensure RedisAvailabilityCache implements AvailabilityCache
var _ appstock.AvailabilityCache = (*RedisAvailabilityCache)(nil)
