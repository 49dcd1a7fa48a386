package marketplace

import (
	"github.com/huykn/course-marketplace/cache"
	"github.com/huykn/course-marketplace/loader"
	"github.com/huykn/course-marketplace/reqctx"
	"github.com/huykn/course-marketplace/types"
)

// Logger is an alias for types.Logger. *slog.Logger satisfies it.
type Logger = types.Logger

// LocalCache is an alias for cache.LocalCache.
type LocalCache = cache.LocalCache

// LocalCacheMetrics is an alias for cache.LocalCacheMetrics.
type LocalCacheMetrics = cache.LocalCacheMetrics

// LocalCacheFactory is an alias for cache.LocalCacheFactory.
type LocalCacheFactory = cache.LocalCacheFactory

// LocalCacheConfig is an alias for cache.LocalCacheConfig.
type LocalCacheConfig = cache.LocalCacheConfig

// ListStats is an alias for cache.Stats.
type ListStats = cache.Stats

// Loaders is an alias for loader.Loaders.
type Loaders = loader.Loaders

// RequestContext is an alias for reqctx.Context.
type RequestContext = reqctx.Context

// DefaultLocalCacheConfig returns default local cache configuration for Ristretto.
func DefaultLocalCacheConfig() LocalCacheConfig {
	return cache.DefaultLocalCacheConfig()
}
