// Package store is the backing-store boundary of the data-access core.
// Resolvers never talk to it directly; they go through the per-request
// loaders and the list cache.
package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/huykn/course-marketplace/types"
)

// ErrNotFound is returned by FindByID when no record has the given id.
var ErrNotFound = errors.New("record not found")

// Repository is the read surface the core consumes for one entity type.
type Repository[T types.Entity] interface {
	// FindByID returns the record with the given id or ErrNotFound.
	FindByID(ctx context.Context, id string) (T, error)

	// FindByIDs returns the records for ids keyed by id.
	// Unknown ids are absent from the map; that is not an error.
	FindByIDs(ctx context.Context, ids []string) (map[string]T, error)

	// FindAll returns every record in a stable order.
	FindAll(ctx context.Context) ([]T, error)
}

// MemoryRepository is a concurrency-safe in-memory Repository that keeps
// insertion order.
type MemoryRepository[T types.Entity] struct {
	mu      sync.RWMutex
	records map[string]T
	order   []string
	failErr error

	// OnMutate runs after every successful Save or Delete. The write is
	// already committed when it runs, so it reports its own failures.
	OnMutate func(ctx context.Context)

	byIDCalls  atomic.Int64
	byIDsCalls atomic.Int64
	allCalls   atomic.Int64

	batchesMu sync.Mutex
	batches   [][]string
}

// NewMemoryRepository creates a repository holding records.
func NewMemoryRepository[T types.Entity](records ...T) *MemoryRepository[T] {
	r := &MemoryRepository[T]{records: make(map[string]T, len(records))}
	for _, rec := range records {
		r.put(rec)
	}
	return r
}

// FindByID implements Repository.
func (r *MemoryRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	r.byIDCalls.Add(1)
	var zero T
	if err := r.check(ctx); err != nil {
		return zero, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return zero, ErrNotFound
	}
	return rec, nil
}

// FindByIDs implements Repository.
func (r *MemoryRepository[T]) FindByIDs(ctx context.Context, ids []string) (map[string]T, error) {
	r.byIDsCalls.Add(1)
	r.batchesMu.Lock()
	r.batches = append(r.batches, append([]string(nil), ids...))
	r.batchesMu.Unlock()

	if err := r.check(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]T, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

// FindAll implements Repository.
func (r *MemoryRepository[T]) FindAll(ctx context.Context) ([]T, error) {
	r.allCalls.Add(1)
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out, nil
}

// Save inserts or replaces rec and runs OnMutate.
func (r *MemoryRepository[T]) Save(ctx context.Context, rec T) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.put(rec)
	r.mu.Unlock()
	r.mutated(ctx)
	return nil
}

// Delete removes the record with id and runs OnMutate.
// Deleting an unknown id returns ErrNotFound.
func (r *MemoryRepository[T]) Delete(ctx context.Context, id string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	if _, ok := r.records[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.records, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	r.mutated(ctx)
	return nil
}

// FailWith makes every subsequent call return err. A nil err restores
// normal operation.
func (r *MemoryRepository[T]) FailWith(err error) {
	r.mu.Lock()
	r.failErr = err
	r.mu.Unlock()
}

// Stats returns how many times each finder has been called.
func (r *MemoryRepository[T]) Stats() RepositoryStats {
	return RepositoryStats{
		FindByID:  r.byIDCalls.Load(),
		FindByIDs: r.byIDsCalls.Load(),
		FindAll:   r.allCalls.Load(),
	}
}

// Batches returns the id sets passed to FindByIDs, in call order.
func (r *MemoryRepository[T]) Batches() [][]string {
	r.batchesMu.Lock()
	defer r.batchesMu.Unlock()
	out := make([][]string, len(r.batches))
	copy(out, r.batches)
	return out
}

// RepositoryStats counts finder calls.
type RepositoryStats struct {
	FindByID  int64
	FindByIDs int64
	FindAll   int64
}

func (r *MemoryRepository[T]) put(rec T) {
	id := rec.EntityID()
	if _, exists := r.records[id]; !exists {
		r.order = append(r.order, id)
	}
	r.records[id] = rec
}

func (r *MemoryRepository[T]) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failErr
}

func (r *MemoryRepository[T]) mutated(ctx context.Context) {
	if r.OnMutate != nil {
		r.OnMutate(ctx)
	}
}
