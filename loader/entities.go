package loader

import (
	"context"

	"github.com/huykn/course-marketplace/store"
	"github.com/huykn/course-marketplace/types"
)

// Loaders holds one fresh loader per entity type for a single request.
type Loaders struct {
	Users        *Loader[string, *types.User]
	Instructors  *Loader[string, *types.Instructor]
	Durations    *Loader[string, *types.Duration]
	Courses      *Loader[string, *types.Course]
	Transactions *Loader[string, *types.Transaction]
	Reviews      *Loader[string, *types.Review]
}

// NewLoaders builds empty loaders over s, bound to the request context ctx.
func NewLoaders(ctx context.Context, s *store.Store, cfg Config) *Loaders {
	return &Loaders{
		Users:        New(ctx, "user", byIDs(s.Users), cfg),
		Instructors:  New(ctx, "instructor", byIDs(s.Instructors), cfg),
		Durations:    New(ctx, "duration", byIDs(s.Durations), cfg),
		Courses:      New(ctx, "course", byIDs(s.Courses), cfg),
		Transactions: New(ctx, "transaction", byIDs(s.Transactions), cfg),
		Reviews:      New(ctx, "review", byIDs(s.Reviews), cfg),
	}
}

func byIDs[T types.Entity](repo store.Repository[T]) BatchFunc[string, T] {
	return repo.FindByIDs
}
