// Package loader provides request-scoped batch loaders.
//
// A Loader collects the keys requested while a request is being resolved
// and fetches them from the backing store in one call. Results are memoized
// for the lifetime of the loader, which is the lifetime of one request:
// loaders are cheap to build and must never be shared between requests.
package loader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/huykn/course-marketplace/types"
)

// BatchFunc fetches every key in one round trip. Keys missing from the
// returned map resolve to the zero value of V; that is not an error.
// A non-nil error fails the whole batch.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Thunk is a handle to a pending load. Calling it blocks until the value
// is available or ctx is done.
type Thunk[V any] func(ctx context.Context) (V, error)

// Config tunes when a batch is dispatched.
type Config struct {
	// Wait is how long a batch stays open for more keys. Zero means the
	// batch is dispatched as soon as any caller waits on one of its keys.
	Wait time.Duration

	// MaxBatch caps the number of keys in one fetch. Zero means no cap.
	MaxBatch int

	// Logger receives dispatch failures. Defaults to a no-op logger.
	Logger types.Logger
}

// DefaultConfig returns a configuration that dispatches on first wait
// with batches of at most 500 keys.
func DefaultConfig() Config {
	return Config{MaxBatch: 500}
}

const (
	oTELBatchStarted = "Loader.batch started"
	oTELBatchEnded   = "Loader.batch ended"
	oTELBatchError   = "Loader.batch fetch error"
)

// Loader batches and memoizes loads by key.
type Loader[K comparable, V any] struct {
	ctx      context.Context
	name     string
	fetch    BatchFunc[K, V]
	wait     time.Duration
	maxBatch int
	logger   types.Logger

	mu    sync.Mutex
	memo  map[K]*batch[K, V]
	batch *batch[K, V]

	dispatched atomic.Int64
}

type batch[K comparable, V any] struct {
	keys    []K
	pending map[K]struct{}
	once    sync.Once
	timer   *time.Timer
	done    chan struct{}
	results map[K]V
	err     error
}

// New creates a loader bound to ctx. Batches dispatched after ctx is done
// fail with ctx.Err() without calling fetch.
func New[K comparable, V any](ctx context.Context, name string, fetch BatchFunc[K, V], cfg Config) *Loader[K, V] {
	return &Loader[K, V]{
		ctx:      ctx,
		name:     name,
		fetch:    fetch,
		wait:     cfg.Wait,
		maxBatch: cfg.MaxBatch,
		logger:   types.OrNoOp(cfg.Logger),
		memo:     make(map[K]*batch[K, V]),
	}
}

// Load returns the value for key, batching it with every other key
// requested before the batch is dispatched.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.Thunk(key)(ctx)
}

// Thunk registers key and returns a handle to its value without blocking.
// Register every key first and then call the handles to get one fetch.
func (l *Loader[K, V]) Thunk(key K) Thunk[V] {
	b := l.register(key)
	return func(ctx context.Context) (V, error) {
		return l.await(ctx, b, key)
	}
}

// LoadAll loads keys and returns their values in the same order.
func (l *Loader[K, V]) LoadAll(ctx context.Context, keys []K) ([]V, error) {
	batches := make([]*batch[K, V], len(keys))
	for i, key := range keys {
		batches[i] = l.register(key)
	}
	if l.wait == 0 {
		for _, b := range batches {
			l.dispatch(b)
		}
	}

	out := make([]V, len(keys))
	for i, key := range keys {
		v, err := l.await(ctx, batches[i], key)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Prime stores value for key. If key is already known, nothing changes and
// false is returned; Clear the key first to force it.
func (l *Loader[K, V]) Prime(key K, value V) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.memo[key]; ok {
		return false
	}
	b := &batch[K, V]{
		done:    make(chan struct{}),
		results: map[K]V{key: value},
	}
	b.once.Do(func() { close(b.done) })
	l.memo[key] = b
	return true
}

// Clear forgets key so the next load fetches it again. A key whose batch
// has not been dispatched yet stays in that batch.
func (l *Loader[K, V]) Clear(key K) {
	l.mu.Lock()
	delete(l.memo, key)
	l.mu.Unlock()
}

// Dispatched returns how many batches have been sent to the backing store.
func (l *Loader[K, V]) Dispatched() int64 {
	return l.dispatched.Load()
}

func (l *Loader[K, V]) register(key K) *batch[K, V] {
	l.mu.Lock()
	if b, ok := l.memo[key]; ok {
		l.mu.Unlock()
		return b
	}

	b := l.batch
	if b == nil {
		b = &batch[K, V]{done: make(chan struct{}), pending: make(map[K]struct{})}
		l.batch = b
		if l.wait > 0 {
			b.timer = time.AfterFunc(l.wait, func() { l.dispatch(b) })
		}
	}
	// A key cleared while its batch is still open rejoins that batch.
	l.memo[key] = b
	if _, ok := b.pending[key]; ok {
		l.mu.Unlock()
		return b
	}
	b.pending[key] = struct{}{}
	b.keys = append(b.keys, key)
	full := l.maxBatch > 0 && len(b.keys) >= l.maxBatch
	if full {
		l.batch = nil
	}
	l.mu.Unlock()

	if full {
		l.dispatch(b)
	}
	return b
}

func (l *Loader[K, V]) await(ctx context.Context, b *batch[K, V], key K) (V, error) {
	if l.wait == 0 {
		l.dispatch(b)
	}

	var zero V
	select {
	case <-b.done:
		if b.err != nil {
			return zero, b.err
		}
		return b.results[key], nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// dispatch closes b to new keys and fetches it once.
func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	l.mu.Lock()
	if l.batch == b {
		l.batch = nil
	}
	l.mu.Unlock()

	b.once.Do(func() {
		if b.timer != nil {
			b.timer.Stop()
		}
		go l.run(b)
	})
}

func (l *Loader[K, V]) run(b *batch[K, V]) {
	defer close(b.done)

	if err := l.ctx.Err(); err != nil {
		b.err = err
		l.forget(b)
		return
	}

	l.dispatched.Add(1)
	span := trace.SpanFromContext(l.ctx)
	span.AddEvent(oTELBatchStarted, trace.WithAttributes(
		attribute.String("loader", l.name),
		attribute.Int("keys", len(b.keys)),
	))

	results, err := l.fetch(l.ctx, b.keys)
	if err != nil {
		b.err = err
		l.forget(b)
		span.AddEvent(oTELBatchError, trace.WithAttributes(attribute.String("loader", l.name)))
		span.SetStatus(codes.Error, err.Error())
		l.logger.Warn("loader batch failed", "loader", l.name, "keys", len(b.keys), "error", err)
		return
	}

	b.results = results
	span.AddEvent(oTELBatchEnded, trace.WithAttributes(
		attribute.String("loader", l.name),
		attribute.Int("found", len(results)),
	))
}

// forget drops the memo entries of a failed batch so a later load can retry.
func (l *Loader[K, V]) forget(b *batch[K, V]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range b.keys {
		if l.memo[key] == b {
			delete(l.memo, key)
		}
	}
}
