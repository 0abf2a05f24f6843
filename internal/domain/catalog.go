package domain

import "time"

// Path is an ordered collection of courses a learner enrolls into.
type Path struct {
	ID          int64
	Title       string
	Description string
	Position    int
	DefaultPath bool
	CreatedAt   time.Time
}

// Course groups lessons inside a path.
type Course struct {
	ID          int64
	PathID      int64
	Title       string
	Description string
	Position    int
	CreatedAt   time.Time
}

// Lesson is the unit a learner marks complete.
type Lesson struct {
	ID          int64
	CourseID    int64
	Title       string
	Description string
	Position    int
	IsProject   bool
	CreatedAt   time.Time
}
