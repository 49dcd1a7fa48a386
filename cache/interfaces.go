package cache

import (
	"context"

	"github.com/huykn/course-marketplace/types"
)

// Logger is an alias for types.Logger.
type Logger = types.Logger

// LocalCache holds decoded list snapshots inside one process.
type LocalCache interface {
	// Get retrieves a value from the local cache.
	Get(key string) (any, bool)

	// Set stores a value in the local cache.
	Set(key string, value any, cost int64) bool

	// Delete removes a value from the local cache.
	Delete(key string)

	// Clear removes all values from the local cache.
	Clear()

	// Close closes the local cache.
	Close()

	// Metrics returns cache metrics.
	Metrics() LocalCacheMetrics
}

// LocalCacheMetrics represents local cache metrics.
type LocalCacheMetrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64
}

// LocalCacheFactory creates local cache implementations.
type LocalCacheFactory interface {
	Create() (LocalCache, error)
}

// Synchronizer propagates list cache events between pods.
type Synchronizer interface {
	// Subscribe starts listening for events.
	Subscribe(ctx context.Context) error

	// Publish broadcasts an event.
	Publish(ctx context.Context, event types.InvalidationEvent) error

	// OnInvalidate registers a callback for events from other pods.
	OnInvalidate(callback func(event types.InvalidationEvent))

	// Close closes the synchronizer.
	Close() error
}

// InvalidationEvent is an alias for types.InvalidationEvent.
type InvalidationEvent = types.InvalidationEvent

// Action is an alias for types.Action.
type Action = types.Action

// Action constants for list cache events.
const (
	ActionWarm       = types.Warm
	ActionInvalidate = types.Invalidate
	ActionClear      = types.Clear
)

// Source returns the full current record set for one list key.
type Source func(ctx context.Context) ([]any, error)

// Stats represents list cache statistics.
type Stats struct {
	LocalHits     int64
	LocalMisses   int64
	RemoteHits    int64
	RemoteMisses  int64
	Warms         int64
	Invalidations int64
}
