package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/huykn/course-marketplace/cache"
	"github.com/huykn/course-marketplace/loader"
	"github.com/huykn/course-marketplace/pubsub"
	"github.com/huykn/course-marketplace/ratelimit"
	"github.com/huykn/course-marketplace/reqctx"
	"github.com/huykn/course-marketplace/session"
	"github.com/huykn/course-marketplace/storage"
	"github.com/huykn/course-marketplace/store"
	"github.com/huykn/course-marketplace/types"
)

// Config configures the data-access core of one process.
type Config struct {
	// PodID is the unique identifier for this pod/instance.
	// Used to avoid handling our own list cache events.
	PodID string

	// RedisAddr is the Redis server address (e.g., "localhost:6379").
	RedisAddr string

	// RedisPassword is the optional Redis password.
	RedisPassword string

	// RedisDB is the Redis database number.
	RedisDB int

	// RedisMaxRetries follows go-redis: 0 keeps the default, -1 disables.
	RedisMaxRetries int

	// ConnectTimeout bounds the initial PING.
	ConnectTimeout time.Duration

	// TestMode flushes the shared store at startup.
	TestMode bool

	// InvalidationChannel is the Redis pub/sub channel for list cache events.
	InvalidationChannel string

	// LocalCacheConfig configures the local snapshot layer.
	LocalCacheConfig LocalCacheConfig

	// LocalCacheFactory creates the local snapshot layer.
	// If nil, defaults to Ristretto factory.
	LocalCacheFactory LocalCacheFactory

	// DisableLocalCache makes every list read go to Redis.
	DisableLocalCache bool

	RateLimit ratelimit.Config
	Session   session.Config
	Loader    loader.Config

	// Logger is the logger for every component.
	// If nil, defaults to no-op logger.
	Logger Logger

	// DebugMode enables debug logging.
	DebugMode bool

	// OnError is called when an error occurs in background operations.
	OnError func(error)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		PodID:               "default-pod",
		RedisAddr:           "localhost:6379",
		RedisDB:             0,
		ConnectTimeout:      5 * time.Second,
		InvalidationChannel: "cache:invalidate",
		LocalCacheConfig:    DefaultLocalCacheConfig(),
		LocalCacheFactory:   nil, // Will default to Ristretto in New()
		RateLimit:           ratelimit.DefaultConfig(),
		Session:             session.DefaultConfig(),
		Loader:              loader.DefaultConfig(),
		Logger:              nil, // Will default to no-op in New()
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.PodID == "" || c.RedisAddr == "" || c.InvalidationChannel == "" {
		return fmt.Errorf("%w: pod id, redis address and invalidation channel are required", ErrInvalidConfig)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Loader.Wait < 0 || c.Loader.MaxBatch < 0 {
		return fmt.Errorf("%w: loader wait and max batch must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Core holds the process-wide collaborators. It is built once before the
// server accepts requests and closed on shutdown.
type Core struct {
	Store     *storage.RedisStore
	Backing   *store.Store
	Lists     *cache.ListCache
	Limiter   *ratelimit.Limiter
	Sessions  *session.Provider
	PubSub    *pubsub.PubSub
	Assembler *reqctx.Assembler

	logger  Logger
	onError func(error)
}

// New connects to Redis, warms the course and instructor list snapshots
// from backing, and returns once the core is ready to serve.
func New(ctx context.Context, cfg Config, backing *store.Store) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := types.OrNoOp(cfg.Logger)

	shared, err := storage.NewRedisStore(ctx, storage.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		MaxRetries:  cfg.RedisMaxRetries,
		PingTimeout: cfg.ConnectTimeout,
		TestMode:    cfg.TestMode,
	})
	if err != nil {
		return nil, err
	}

	c := &Core{Store: shared, Backing: backing, logger: logger, onError: cfg.OnError}
	if err := c.init(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("core ready", "pod", cfg.PodID, "lists", c.Lists.Keys(), "test_mode", cfg.TestMode)
	return c, nil
}

func (c *Core) init(ctx context.Context, cfg Config) error {
	if cfg.TestMode {
		if err := c.Store.FlushAll(ctx); err != nil {
			return fmt.Errorf("flush shared store: %w", err)
		}
		c.logger.Warn("test mode: shared store flushed")
	}

	c.PubSub = pubsub.New(c.Store.Client(), nil)

	lists, err := cache.New(c.Store, c.PubSub, cache.Options{
		PodID:               cfg.PodID,
		InvalidationChannel: cfg.InvalidationChannel,
		SerializationFormat: "json",
		LocalCacheConfig:    cfg.LocalCacheConfig,
		LocalCacheFactory:   cfg.LocalCacheFactory,
		DisableLocalCache:   cfg.DisableLocalCache,
		Logger:              cfg.Logger,
		DebugMode:           cfg.DebugMode,
		ContextTimeout:      cfg.ConnectTimeout,
		OnError:             cfg.OnError,
	})
	if err != nil {
		return err
	}
	c.Lists = lists
	lists.Register(cache.CourseCacheKey, ListSource(c.Backing.Courses))
	lists.Register(cache.InstructorCacheKey, ListSource(c.Backing.Instructors))

	if err := lists.WarmAll(ctx); err != nil {
		return fmt.Errorf("warm list cache: %w", err)
	}

	rl := cfg.RateLimit
	if rl.Logger == nil {
		rl.Logger = cfg.Logger
	}
	if rl.OnError == nil {
		rl.OnError = cfg.OnError
	}
	if c.Limiter, err = ratelimit.New(c.Store, rl); err != nil {
		return err
	}

	sc := cfg.Session
	if sc.Logger == nil {
		sc.Logger = cfg.Logger
	}
	if c.Sessions, err = session.New(c.Store, sc); err != nil {
		return err
	}

	lc := cfg.Loader
	if lc.Logger == nil {
		lc.Logger = cfg.Logger
	}
	c.Assembler = &reqctx.Assembler{
		Shared:   c.Store,
		Backing:  c.Backing,
		Lists:    c.Lists,
		PubSub:   c.PubSub,
		Sessions: c.Sessions,
		Loader:   lc,
		Logger:   cfg.Logger,
	}
	return nil
}

// Handler wraps next with admission control and request context assembly.
func (c *Core) Handler(next http.Handler) http.Handler {
	return c.Limiter.Middleware(c.Assembler.Middleware(next))
}

// RefreshOnMutate returns a hook that rebuilds the given list snapshots.
// Assign it to the OnMutate of the repositories backing those lists.
// A failed refresh is logged and passed to Config.OnError; the snapshot
// stays invalidated until the next successful warm.
func (c *Core) RefreshOnMutate(keys ...string) func(context.Context) {
	return func(ctx context.Context) {
		if err := c.Lists.Refresh(ctx, keys...); err != nil {
			c.logger.Error("list refresh after mutation failed", "keys", keys, "error", err)
			if c.onError != nil {
				c.onError(err)
			}
		}
	}
}

// Healthy reports whether the shared store answers.
func (c *Core) Healthy(ctx context.Context) bool {
	return c.Store.Healthy(ctx)
}

// Close releases the list cache, pub/sub subscriptions and the Redis
// connection, in that order.
func (c *Core) Close() error {
	var errs []error
	if c.Lists != nil {
		errs = append(errs, c.Lists.Close())
	}
	if c.PubSub != nil {
		errs = append(errs, c.PubSub.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}

// ListSource adapts a repository to a list cache Source.
func ListSource[T types.Entity](repo store.Repository[T]) cache.Source {
	return func(ctx context.Context) ([]any, error) {
		records, err := repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(records))
		for i, rec := range records {
			out[i] = rec
		}
		return out, nil
	}
}
