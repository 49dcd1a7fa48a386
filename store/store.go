package store

import (
	"fmt"
	"time"

	"github.com/huykn/course-marketplace/types"
)

// Store groups the repositories for every entity type the core loads.
type Store struct {
	Users        Repository[*types.User]
	Instructors  Repository[*types.Instructor]
	Durations    Repository[*types.Duration]
	Courses      Repository[*types.Course]
	Transactions Repository[*types.Transaction]
	Reviews      Repository[*types.Review]
}

// Memory is a Store whose repositories are all in-memory.
type Memory struct {
	Users        *MemoryRepository[*types.User]
	Instructors  *MemoryRepository[*types.Instructor]
	Durations    *MemoryRepository[*types.Duration]
	Courses      *MemoryRepository[*types.Course]
	Transactions *MemoryRepository[*types.Transaction]
	Reviews      *MemoryRepository[*types.Review]
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		Users:        NewMemoryRepository[*types.User](),
		Instructors:  NewMemoryRepository[*types.Instructor](),
		Durations:    NewMemoryRepository[*types.Duration](),
		Courses:      NewMemoryRepository[*types.Course](),
		Transactions: NewMemoryRepository[*types.Transaction](),
		Reviews:      NewMemoryRepository[*types.Review](),
	}
}

// Store returns the read-only view used by loaders and the list cache.
func (m *Memory) Store() *Store {
	return &Store{
		Users:        m.Users,
		Instructors:  m.Instructors,
		Durations:    m.Durations,
		Courses:      m.Courses,
		Transactions: m.Transactions,
		Reviews:      m.Reviews,
	}
}

// Seed fills m with a small catalogue: n instructors, each teaching two
// courses, plus durations, users, purchases and reviews.
// It bypasses OnMutate.
func (m *Memory) Seed(n int) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	durations := []*types.Duration{
		{ID: "d1", Label: "0-2 hours", Minutes: 120},
		{ID: "d2", Label: "3-6 hours", Minutes: 360},
		{ID: "d3", Label: "7+ hours", Minutes: 600},
	}
	for _, d := range durations {
		m.Durations.put(d)
	}

	for i := 1; i <= n; i++ {
		userID := fmt.Sprintf("u%d", i)
		m.Users.put(&types.User{
			ID:        userID,
			Email:     fmt.Sprintf("user%d@example.com", i),
			FirstName: "User",
			LastName:  fmt.Sprint(i),
			Confirmed: true,
		})

		instructorID := fmt.Sprintf("i%d", i)
		m.Instructors.put(&types.Instructor{
			ID:       instructorID,
			UserID:   userID,
			Name:     fmt.Sprintf("Instructor %d", i),
			Headline: "Teaches things",
		})

		for j := 1; j <= 2; j++ {
			courseID := fmt.Sprintf("c%d-%d", i, j)
			m.Courses.put(&types.Course{
				ID:           courseID,
				Title:        fmt.Sprintf("Course %d.%d", i, j),
				PriceCents:   int64(1000 * j),
				InstructorID: instructorID,
				DurationID:   durations[(i+j)%len(durations)].ID,
				CreatedAt:    created.Add(time.Duration(i*10+j) * time.Hour),
			})
			m.Transactions.put(&types.Transaction{
				ID:          fmt.Sprintf("t%d-%d", i, j),
				UserID:      userID,
				CourseID:    courseID,
				AmountCents: int64(1000 * j),
				CreatedAt:   created.Add(time.Duration(i*10+j) * 24 * time.Hour),
			})
			m.Reviews.put(&types.Review{
				ID:       fmt.Sprintf("r%d-%d", i, j),
				UserID:   userID,
				CourseID: courseID,
				Rating:   3 + j,
			})
		}
	}
}
