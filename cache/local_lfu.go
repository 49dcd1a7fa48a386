package cache

import (
	"sync/atomic"

	lfu "github.com/dgraph-io/ristretto"
)

// LFUCacheFactory creates Ristretto cache instances.
type LFUCacheFactory struct {
	config LocalCacheConfig
}

// NewLFUCacheFactory creates a new Ristretto cache factory.
func NewLFUCacheFactory(config LocalCacheConfig) LocalCacheFactory {
	return &LFUCacheFactory{config: config}
}

// Create creates a new Ristretto cache instance.
func (rcf *LFUCacheFactory) Create() (LocalCache, error) {
	return NewLFUCache(rcf.config)
}

// LFUCache is a local snapshot layer bounded by total snapshot size.
type LFUCache struct {
	cache     *lfu.Cache
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewLFUCache creates a new Ristretto-based local cache.
func NewLFUCache(config LocalCacheConfig) (*LFUCache, error) {
	rc := &LFUCache{}
	cache, err := lfu.NewCache(&lfu.Config{
		NumCounters:        config.NumCounters,
		MaxCost:            config.MaxCost,
		BufferItems:        config.BufferItems,
		IgnoreInternalCost: true,
		Metrics:            true,
		OnEvict: func(item *lfu.Item) {
			rc.evictions.Add(1)
		},
	})
	if err != nil {
		return nil, err
	}
	rc.cache = cache
	return rc, nil
}

// Get retrieves a value from the local cache.
func (rc *LFUCache) Get(key string) (any, bool) {
	value, found := rc.cache.Get(key)
	if found {
		rc.hits.Add(1)
	} else {
		rc.misses.Add(1)
	}
	return value, found
}

// Set stores a value in the local cache. Ristretto may refuse the value
// under its admission policy; the next read then falls back to Redis.
func (rc *LFUCache) Set(key string, value any, cost int64) bool {
	if cost <= 0 {
		cost = 1
	}
	ok := rc.cache.Set(key, value, cost)
	rc.cache.Wait()
	return ok
}

// Delete removes a value from the local cache.
func (rc *LFUCache) Delete(key string) {
	rc.cache.Del(key)
}

// Clear removes all values from the local cache.
func (rc *LFUCache) Clear() {
	rc.cache.Clear()
}

// Close closes the local cache.
func (rc *LFUCache) Close() {
	rc.cache.Close()
}

// Metrics returns cache metrics.
func (rc *LFUCache) Metrics() LocalCacheMetrics {
	return LocalCacheMetrics{
		Hits:      rc.hits.Load(),
		Misses:    rc.misses.Load(),
		Evictions: rc.evictions.Load(),
		Size:      int64(rc.cache.Metrics.KeysAdded() - rc.cache.Metrics.KeysEvicted()),
	}
}
