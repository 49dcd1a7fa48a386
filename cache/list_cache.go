package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/huykn/course-marketplace/pubsub"
	"github.com/huykn/course-marketplace/storage"
	cachesync "github.com/huykn/course-marketplace/sync"
)

const (
	oTELWarmStarted = "ListCache.Warm started"
	oTELWarmEnded   = "ListCache.Warm ended"
	oTELWarmError   = "ListCache.Warm error"
)

// ListCache keeps a serialized snapshot of every record of a listable
// entity type in a Redis list, plus a decoded copy in process memory.
//
// A snapshot is either absent or complete: Warm replaces it in a single
// MULTI/EXEC and Invalidate removes it the same way. Reads never warm.
// A marker key written together with the list tells an empty collection
// apart from a snapshot that was never built.
type ListCache struct {
	store        *storage.RedisStore
	local        LocalCache
	synchronizer Synchronizer
	serializer   storage.Serializer
	logger       Logger
	options      Options

	sourcesMu sync.RWMutex
	sources   map[string]Source

	group singleflight.Group

	// generation changes on every local invalidation so a read that raced
	// with one does not repopulate the local layer with a stale snapshot.
	localMu    sync.Mutex
	generation atomic.Uint64
	closed     atomic.Bool

	localHits     atomic.Int64
	localMisses   atomic.Int64
	remoteHits    atomic.Int64
	remoteMisses  atomic.Int64
	warms         atomic.Int64
	invalidations atomic.Int64
}

// New creates a ListCache on store. When ps is non-nil, warm and
// invalidate events are broadcast to the other pods on it.
func New(store *storage.RedisStore, ps *pubsub.PubSub, opts Options) (*ListCache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	serializer := opts.Serializer
	if serializer == nil {
		serializer, _ = storage.GetSerializer(opts.SerializationFormat)
	}
	if opts.Logger == nil {
		opts.Logger = NewNoOpLogger()
	}

	lc := &ListCache{
		store:      store,
		serializer: serializer,
		logger:     opts.Logger,
		options:    opts,
		sources:    make(map[string]Source),
	}

	if !opts.DisableLocalCache {
		factory := opts.LocalCacheFactory
		if factory == nil {
			factory = NewLFUCacheFactory(opts.LocalCacheConfig)
		}
		local, err := factory.Create()
		if err != nil {
			return nil, err
		}
		lc.local = local
	}

	if ps != nil {
		synchronizer := cachesync.NewPubSubSynchronizer(ps, opts.InvalidationChannel, opts.PodID, opts.Logger)

		timeout := opts.ContextTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := synchronizer.Subscribe(ctx); err != nil {
			lc.Close()
			return nil, err
		}
		synchronizer.OnInvalidate(lc.handleInvalidation)
		lc.synchronizer = synchronizer
	}

	return lc, nil
}

// Register sets the Source used to warm key.
func (lc *ListCache) Register(key string, src Source) {
	lc.sourcesMu.Lock()
	defer lc.sourcesMu.Unlock()
	lc.sources[key] = src
}

// Keys returns the registered list keys in sorted order.
func (lc *ListCache) Keys() []string {
	lc.sourcesMu.RLock()
	defer lc.sourcesMu.RUnlock()
	keys := make([]string, 0, len(lc.sources))
	for k := range lc.sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Warm rebuilds the snapshot for key from its Source. Concurrent warms of
// the same key share one rebuild.
func (lc *ListCache) Warm(ctx context.Context, key string) error {
	if lc.closed.Load() {
		return ErrCacheClosed
	}
	_, err, _ := lc.group.Do(key, func() (any, error) {
		return nil, lc.warm(ctx, key)
	})
	return err
}

func (lc *ListCache) warm(ctx context.Context, key string) (err error) {
	lc.sourcesMu.RLock()
	src, ok := lc.sources[key]
	lc.sourcesMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	span := trace.SpanFromContext(ctx)
	span.AddEvent(oTELWarmStarted, trace.WithAttributes(attribute.String("key", key)))
	defer func() {
		if err != nil {
			span.AddEvent(oTELWarmError, trace.WithAttributes(attribute.String("key", key)))
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	records, err := src(ctx)
	if err != nil {
		return fmt.Errorf("warm %s: %w", key, err)
	}

	values := make([]string, len(records))
	for i, rec := range records {
		data, err := lc.serializer.Marshal(rec)
		if err != nil {
			return fmt.Errorf("warm %s: record %d: %w", key, i, err)
		}
		values[i] = string(data)
	}

	if err = lc.store.ReplaceList(ctx, key, key+warmSuffix, values); err != nil {
		return fmt.Errorf("warm %s: %w", key, err)
	}

	lc.dropLocal(key)
	lc.warms.Add(1)
	lc.publish(ctx, key, ActionWarm)
	span.AddEvent(oTELWarmEnded, trace.WithAttributes(
		attribute.String("key", key),
		attribute.Int("records", len(values)),
	))
	if lc.options.DebugMode {
		lc.logger.Debug("Warm: snapshot rebuilt", "key", key, "records", len(values))
	}
	return nil
}

// WarmAll warms every registered key concurrently.
func (lc *ListCache) WarmAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range lc.Keys() {
		g.Go(func() error {
			return lc.Warm(gctx, key)
		})
	}
	return g.Wait()
}

// Invalidate removes the snapshots for keys. Readers see an empty list and
// IsWarm reports false until the next Warm.
func (lc *ListCache) Invalidate(ctx context.Context, keys ...string) error {
	if lc.closed.Load() {
		return ErrCacheClosed
	}
	if len(keys) == 0 {
		return nil
	}

	// One DEL removes every list with its marker atomically.
	doomed := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		doomed = append(doomed, key, key+warmSuffix)
	}
	if err := lc.store.Delete(ctx, doomed...); err != nil {
		return err
	}

	for _, key := range keys {
		lc.dropLocal(key)
		lc.invalidations.Add(1)
		lc.publish(ctx, key, ActionInvalidate)
	}
	if lc.options.DebugMode {
		lc.logger.Debug("Invalidate: snapshots removed", "keys", keys)
	}
	return nil
}

// Refresh invalidates keys and warms them again. Code paths that mutate a
// listed collection call it after the write commits.
func (lc *ListCache) Refresh(ctx context.Context, keys ...string) error {
	if err := lc.Invalidate(ctx, keys...); err != nil {
		return err
	}
	var errs []error
	for _, key := range keys {
		// A warm already in flight may have read the collection before the
		// write; start a new one instead of joining it.
		lc.group.Forget(key)
		if err := lc.Warm(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear invalidates every registered key.
func (lc *ListCache) Clear(ctx context.Context) error {
	if err := lc.Invalidate(ctx, lc.Keys()...); err != nil {
		return err
	}
	lc.clearLocal()
	lc.publish(ctx, "*", ActionClear)
	return nil
}

// ReadAll returns the serialized records of key in snapshot order.
// A missing snapshot yields an empty slice; use IsWarm to tell it apart
// from an empty collection. The returned slice is shared and must not be
// modified.
func (lc *ListCache) ReadAll(ctx context.Context, key string) ([]string, error) {
	if lc.closed.Load() {
		return nil, ErrCacheClosed
	}

	if lc.local != nil {
		if value, found := lc.local.Get(key); found {
			lc.localHits.Add(1)
			if lc.options.DebugMode {
				lc.logger.Debug("ReadAll: found in local cache", "key", key)
			}
			return value.([]string), nil
		}
		lc.localMisses.Add(1)
	}

	gen := lc.generation.Load()
	vals, err := lc.store.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		lc.remoteMisses.Add(1)
		return []string{}, nil
	}
	lc.remoteHits.Add(1)

	lc.setLocal(key, vals, gen)
	return vals, nil
}

// ReadAllInto decodes the snapshot of key into a slice of T.
func ReadAllInto[T any](ctx context.Context, lc *ListCache, key string) ([]T, error) {
	vals, err := lc.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(vals))
	for i, v := range vals {
		if err := lc.serializer.Unmarshal([]byte(v), &out[i]); err != nil {
			return nil, fmt.Errorf("decode %s[%d]: %w", key, i, err)
		}
	}
	return out, nil
}

// IsWarm reports whether key holds a snapshot, even an empty one.
func (lc *ListCache) IsWarm(ctx context.Context, key string) (bool, error) {
	if lc.closed.Load() {
		return false, ErrCacheClosed
	}
	return lc.store.Exists(ctx, key+warmSuffix)
}

// Stats returns list cache statistics.
func (lc *ListCache) Stats() Stats {
	return Stats{
		LocalHits:     lc.localHits.Load(),
		LocalMisses:   lc.localMisses.Load(),
		RemoteHits:    lc.remoteHits.Load(),
		RemoteMisses:  lc.remoteMisses.Load(),
		Warms:         lc.warms.Load(),
		Invalidations: lc.invalidations.Load(),
	}
}

// Close stops the synchronizer and releases the local layer. The Redis
// store belongs to the caller and stays open.
func (lc *ListCache) Close() error {
	if !lc.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if lc.synchronizer != nil {
		err = lc.synchronizer.Close()
	}
	if lc.local != nil {
		lc.local.Close()
	}
	return err
}

func (lc *ListCache) dropLocal(key string) {
	if lc.local == nil {
		return
	}
	lc.localMu.Lock()
	defer lc.localMu.Unlock()
	lc.generation.Add(1)
	lc.local.Delete(key)
}

func (lc *ListCache) clearLocal() {
	if lc.local == nil {
		return
	}
	lc.localMu.Lock()
	defer lc.localMu.Unlock()
	lc.generation.Add(1)
	lc.local.Clear()
}

// setLocal stores vals unless the local layer was invalidated since gen
// was read.
func (lc *ListCache) setLocal(key string, vals []string, gen uint64) {
	if lc.local == nil {
		return
	}
	var cost int64
	for _, v := range vals {
		cost += int64(len(v))
	}
	lc.localMu.Lock()
	defer lc.localMu.Unlock()
	if lc.generation.Load() != gen {
		return
	}
	lc.local.Set(key, vals, cost)
}

func (lc *ListCache) publish(ctx context.Context, key string, action Action) {
	if lc.synchronizer == nil {
		return
	}
	err := lc.synchronizer.Publish(ctx, InvalidationEvent{Key: key, Action: action})
	if err != nil {
		if lc.options.OnError != nil {
			lc.options.OnError(err)
		}
		lc.logger.Warn("failed to publish list cache event", "key", key, "action", action, "error", err)
	}
}

// handleInvalidation applies an event from another pod.
func (lc *ListCache) handleInvalidation(event InvalidationEvent) {
	if lc.options.DebugMode {
		lc.logger.Info("Received list cache event", "action", event.Action, "key", event.Key, "sender", event.Sender)
	}

	switch event.Action {
	case ActionWarm, ActionInvalidate:
		lc.dropLocal(event.Key)
		if event.Action == ActionInvalidate {
			lc.invalidations.Add(1)
		}
	case ActionClear:
		lc.clearLocal()
	default:
		lc.logger.Warn("Sync: unknown action", "action", event.Action, "key", event.Key, "sender", event.Sender)
	}
}
