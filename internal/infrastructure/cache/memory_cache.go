package cache

import (
	"context"
	"sync"
	"time"

	appstock "github.com/elysium/backend/internal/application/stock"
)

// InMemoryAvailabilityCache is a process-local availability cache for
// single-instance deployments and tests. Entries expire lazily on read.
type InMemoryAvailabilityCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	snapshot  appstock.AvailabilitySnapshot
	expiresAt time.Time
}

// NewInMemoryAvailabilityCache creates an in-memory availability cache
func NewInMemoryAvailabilityCache(ttl time.Duration) *InMemoryAvailabilityCache {
	if ttl <= 0 {
		ttl = defaultAvailabilityTTL
	}
	return &InMemoryAvailabilityCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get returns the cached snapshot for a variant, or nil on a cache miss
func (c *InMemoryAvailabilityCache) Get(ctx context.Context, productKey, variantKey string) (*appstock.AvailabilitySnapshot, error) {
	key := cacheKey(productKey, variantKey)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}

	snapshot := entry.snapshot
	return &snapshot, nil
}

// Set stores a snapshot with the configured TTL
func (c *InMemoryAvailabilityCache) Set(ctx context.Context, snapshot *appstock.AvailabilitySnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(snapshot.ProductKey, snapshot.VariantKey)] = memoryEntry{
		snapshot:  *snapshot,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops the cached snapshot for a variant
func (c *InMemoryAvailabilityCache) Invalidate(ctx context.Context, productKey, variantKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, cacheKey(productKey, variantKey))
	return nil
}

// Len returns the number of cached entries (for testing/monitoring)
func (c *InMemoryAvailabilityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(productKey, variantKey string) string {
	return productKey + ":" + variantKey
}

// Ensure InMemoryAvailabilityCache implements AvailabilityCache
var _ appstock.AvailabilityCache = (*InMemoryAvailabilityCache)(nil)
