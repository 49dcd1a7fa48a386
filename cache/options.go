package cache

import (
	"errors"
	"time"

	"github.com/huykn/course-marketplace/storage"
)

// Well-known list keys.
const (
	CourseCacheKey     = "cache:courses"
	InstructorCacheKey = "cache:instructors"
)

// warmSuffix names the marker key written next to a list when it is warmed.
const warmSuffix = ":warm"

// LocalCacheConfig configures the local cache.
type LocalCacheConfig struct {
	// NumCounters is the number of counters for the cache (Ristretto only).
	// Recommended: 10 * MaxItems
	NumCounters int64

	// MaxCost is the maximum cost of items in the cache (Ristretto only).
	// Snapshots are charged their serialized size in bytes.
	MaxCost int64

	// BufferItems is the number of items to buffer before eviction (Ristretto only).
	// Recommended: 64
	BufferItems int64

	// MaxSize is the maximum number of items in the cache (LRU only).
	MaxSize int
}

// Options configures a ListCache.
type Options struct {
	// PodID is the unique identifier for this pod/instance.
	// Used to avoid handling our own events.
	PodID string

	// InvalidationChannel is the pub/sub channel for list cache events.
	InvalidationChannel string

	// SerializationFormat selects the record serializer. Only "json" is supported.
	SerializationFormat string

	// Serializer overrides SerializationFormat when set.
	Serializer storage.Serializer

	// LocalCacheConfig configures the local snapshot layer.
	LocalCacheConfig LocalCacheConfig

	// LocalCacheFactory creates the local snapshot layer.
	// If nil, defaults to the Ristretto factory.
	LocalCacheFactory LocalCacheFactory

	// DisableLocalCache makes every read go to Redis.
	DisableLocalCache bool

	// Logger is the logger for debug logging.
	// If nil, defaults to no-op logger.
	Logger Logger

	// DebugMode enables debug logging.
	DebugMode bool

	// ContextTimeout bounds the pub/sub subscription at construction.
	ContextTimeout time.Duration

	// OnError is called when an error occurs in background operations.
	OnError func(error)
}

// DefaultOptions returns default list cache options.
func DefaultOptions() Options {
	return Options{
		PodID:               "default-pod",
		InvalidationChannel: "cache:invalidate",
		SerializationFormat: "json",
		ContextTimeout:      5 * time.Second,
		LocalCacheConfig:    DefaultLocalCacheConfig(),
	}
}

// DefaultLocalCacheConfig returns default local cache configuration.
func DefaultLocalCacheConfig() LocalCacheConfig {
	return LocalCacheConfig{
		NumCounters: 1e4,
		MaxCost:     64 << 20, // 64MB
		BufferItems: 64,
		MaxSize:     64,
	}
}

// Validate validates the options.
func (o *Options) Validate() error {
	if o.PodID == "" {
		return ErrInvalidConfig
	}
	if o.InvalidationChannel == "" {
		return ErrInvalidConfig
	}
	if o.Serializer == nil {
		if _, err := storage.GetSerializer(o.SerializationFormat); err != nil {
			return ErrInvalidConfig
		}
	}
	if !o.DisableLocalCache && o.LocalCacheFactory == nil {
		if o.LocalCacheConfig.NumCounters <= 0 || o.LocalCacheConfig.MaxCost <= 0 {
			return ErrInvalidConfig
		}
	}
	return nil
}

var (
	// ErrInvalidConfig is returned when options are invalid.
	ErrInvalidConfig = errors.New("invalid list cache configuration")

	// ErrCacheClosed is returned when operations are performed on a closed cache.
	ErrCacheClosed = errors.New("list cache is closed")

	// ErrUnknownKey is returned when warming a key with no registered Source.
	ErrUnknownKey = errors.New("no source registered for list key")
)
