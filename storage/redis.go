package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the shared Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// MaxRetries follows go-redis: 0 keeps the default of 3, -1 disables retries.
	MaxRetries int

	// DialTimeout follows go-redis: 0 keeps the default of 5s.
	DialTimeout time.Duration

	// PingTimeout bounds the connectivity check run by NewRedisStore.
	PingTimeout time.Duration

	// TestMode permits FlushAll.
	TestMode bool
}

// RedisStore is the process-wide handle to the shared key-value store.
// List cache, rate limiter and session provider each use their own key
// prefix on the same connection.
type RedisStore struct {
	client   *redis.Client
	testMode bool
}

// NewRedisStore connects to Redis and blocks until the server answers a PING.
func NewRedisStore(ctx context.Context, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		MaxRetries:  opts.MaxRetries,
		DialTimeout: opts.DialTimeout,
	})

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, Unavailable(err)
	}

	return &RedisStore{
		client:   client,
		testMode: opts.TestMode,
	}, nil
}

// GetAndExpire retrieves key and, when ttl is positive, resets its
// time-to-live in the same round trip. A missing key returns ErrNotFound.
func (rs *RedisStore) GetAndExpire(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	var get *redis.StringCmd
	_, err := rs.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		if ttl > 0 {
			pipe.PExpire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, Unavailable(err)
	}
	val, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, Unavailable(err)
	}
	return val, nil
}

// Set stores a value in Redis. A zero ttl keeps the key forever.
func (rs *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return Unavailable(rs.client.Set(ctx, key, value, ttl).Err())
}

// Delete removes keys from Redis in one command.
func (rs *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return Unavailable(rs.client.Del(ctx, keys...).Err())
}

// Exists reports whether key is present.
func (rs *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rs.client.Exists(ctx, key).Result()
	if err != nil {
		return false, Unavailable(err)
	}
	return n == 1, nil
}

// ReplaceList swaps the list at key for values and writes marker in the
// same MULTI/EXEC, so readers see either the old list or the new one.
func (rs *RedisStore) ReplaceList(ctx context.Context, key, marker string, values []string) error {
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key, marker)
		if len(values) > 0 {
			pipe.RPush(ctx, key, toArgs(values)...)
		}
		pipe.Set(ctx, marker, time.Now().UnixMilli(), 0)
		return nil
	})
	return Unavailable(err)
}

// LRange returns the list elements between start and stop inclusive.
func (rs *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := rs.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, Unavailable(err)
	}
	return vals, nil
}

// RunScript runs script (EVALSHA, falling back to EVAL) and returns its
// integer array reply.
func (rs *RedisStore) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) ([]int64, error) {
	vals, err := script.Run(ctx, rs.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, Unavailable(err)
	}
	return vals, nil
}

// FlushAll removes every key from every database. Only allowed in test mode.
func (rs *RedisStore) FlushAll(ctx context.Context) error {
	if !rs.testMode {
		return ErrFlushForbidden
	}
	return Unavailable(rs.client.FlushAll(ctx).Err())
}

// Healthy reports whether Redis answers a PING.
func (rs *RedisStore) Healthy(ctx context.Context) bool {
	return rs.client.Ping(ctx).Err() == nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// Client returns the underlying Redis client. Pub/sub needs the raw
// client for its dedicated subscriber connections.
func (rs *RedisStore) Client() *redis.Client {
	return rs.client
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// Unavailable wraps a non-nil Redis error so callers can match it with
// errors.Is(err, ErrUnavailable). redis.Nil is returned unchanged.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// ErrNotFound is returned when a key is not found.
var ErrNotFound = errors.New("key not found in redis")

// ErrUnavailable is returned when the shared store cannot be reached.
var ErrUnavailable = errors.New("shared store unavailable")

// ErrFlushForbidden is returned by FlushAll outside test mode.
var ErrFlushForbidden = errors.New("flushall is only allowed in test mode")
