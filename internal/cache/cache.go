package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/water-quality-monitor/internal/models"
)

// Cache holds recently fetched sensor-log snapshots.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.Sample, bool, error)
	Set(ctx context.Context, key string, value []models.Sample, ttl time.Duration) error
}

// InMemoryCache implements Cache using an in-memory map with TTL-based expiration.
// Expired entries are removed on access. Safe for concurrent use.
type InMemoryCache struct {
	mu    sync.Mutex
	clock clockwork.Clock
	data  map[string]cacheEntry
}

type cacheEntry struct {
	value     []models.Sample
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance on the real clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(clockwork.NewRealClock())
}

// NewInMemoryCacheWithClock creates an in-memory cache that reads expiry time from clock.
func NewInMemoryCacheWithClock(clock clockwork.Clock) *InMemoryCache {
	return &InMemoryCache{
		clock: clock,
		data:  make(map[string]cacheEntry),
	}
}

// Get returns (data, true, nil) on a hit and (nil, false, nil) on a miss or expiry.
// The returned slice is a copy.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]models.Sample, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}

	if c.clock.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, false, nil
	}

	return cloneSamples(entry.value), true, nil
}

// Set stores a copy of value with the given TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []models.Sample, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     cloneSamples(value),
		expiresAt: c.clock.Now().Add(ttl),
	}
	return nil
}

func cloneSamples(in []models.Sample) []models.Sample {
	out := make([]models.Sample, len(in))
	copy(out, in)
	return out
}
