package store

import (
	"context"
	"errors"
	"testing"

	"github.com/huykn/course-marketplace/types"
)

func TestMemoryRepositoryFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(
		&types.Course{ID: "1", Title: "one"},
		&types.Course{ID: "2", Title: "two"},
	)

	c, err := repo.FindByID(ctx, "2")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if c.Title != "two" {
		t.Fatalf("Expected two, got %s", c.Title)
	}

	if _, err := repo.FindByID(ctx, "3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	got, err := repo.FindByIDs(ctx, []string{"1", "3"})
	if err != nil {
		t.Fatalf("FindByIDs failed: %v", err)
	}
	if len(got) != 1 || got["1"] == nil {
		t.Fatalf("Expected only id 1, got %v", got)
	}
	if _, ok := got["3"]; ok {
		t.Fatal("Unknown id should be absent")
	}

	stats := repo.Stats()
	if stats.FindByID != 2 || stats.FindByIDs != 1 {
		t.Fatalf("Unexpected stats %+v", stats)
	}
}

func TestMemoryRepositoryOrderAndMutations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository[*types.Instructor]()

	var mutations int
	repo.OnMutate = func(context.Context) {
		mutations++
	}

	for _, id := range []string{"b", "a", "c"} {
		if err := repo.Save(ctx, &types.Instructor{ID: id}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := repo.Save(ctx, &types.Instructor{ID: "a", Name: "updated"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "c" {
		t.Fatalf("Unexpected order %v", all)
	}
	if all[0].Name != "updated" {
		t.Fatalf("Expected updated record, got %+v", all[0])
	}
	if mutations != 5 {
		t.Fatalf("Expected 5 mutations, got %d", mutations)
	}
}

func TestMemoryRepositoryFailWith(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(&types.User{ID: "u1"})
	boom := errors.New("connection refused")

	repo.FailWith(boom)
	if _, err := repo.FindByIDs(ctx, []string{"u1"}); !errors.Is(err, boom) {
		t.Fatalf("Expected injected error, got %v", err)
	}
	if _, err := repo.FindAll(ctx); !errors.Is(err, boom) {
		t.Fatalf("Expected injected error, got %v", err)
	}

	repo.FailWith(nil)
	if _, err := repo.FindAll(ctx); err != nil {
		t.Fatalf("Expected recovery, got %v", err)
	}
}

func TestMemorySeed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Seed(3)
	s := m.Store()

	courses, err := s.Courses.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(courses) != 6 {
		t.Fatalf("Expected 6 courses, got %d", len(courses))
	}
	instructors, _ := s.Instructors.FindAll(ctx)
	if len(instructors) != 3 {
		t.Fatalf("Expected 3 instructors, got %d", len(instructors))
	}
	if _, err := s.Durations.FindByID(ctx, courses[0].DurationID); err != nil {
		t.Fatalf("Course references unknown duration: %v", err)
	}
}
