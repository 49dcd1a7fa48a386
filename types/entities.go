package types

import "time"

// Entity is implemented by every record the backing store owns.
type Entity interface {
	EntityID() string
}

// User is a marketplace account.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Confirmed bool   `json:"confirmed"`
}

func (u *User) EntityID() string { return u.ID }

// Instructor teaches one or more courses.
type Instructor struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Headline string `json:"headline,omitempty"`
	Bio      string `json:"bio,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func (i *Instructor) EntityID() string { return i.ID }

// Duration is a named course length bucket ("1-3 hours", ...).
type Duration struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Minutes int    `json:"minutes"`
}

func (d *Duration) EntityID() string { return d.ID }

// Course is a purchasable listing.
type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PriceCents   int64     `json:"priceCents"`
	InstructorID string    `json:"instructorId"`
	DurationID   string    `json:"durationId"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (c *Course) EntityID() string { return c.ID }

// Transaction records a course purchase.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	CourseID    string    `json:"courseId"`
	AmountCents int64     `json:"amountCents"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (t *Transaction) EntityID() string { return t.ID }

// Review is a user's rating of a course.
type Review struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	CourseID string `json:"courseId"`
	Rating   int    `json:"rating"`
	Body     string `json:"body,omitempty"`
}

func (r *Review) EntityID() string { return r.ID }
