package domain

import "time"

// LessonCompletion records that a student finished a lesson.
type LessonCompletion struct {
	ID        int64
	StudentID int64
	LessonID  int64
	CourseID  int64
	PathID    int64
	CreatedAt time.Time
}

// CourseProgress summarises how far a user is through a course.
type CourseProgress struct {
	CourseID         int64  `json:"course_id"`
	TotalLessons     int    `json:"total_lessons"`
	CompletedLessons int    `json:"completed_lessons"`
	Percentage       int    `json:"percentage"`
	NextLessonID     *int64 `json:"next_lesson_id,omitempty"`
}

// NewCourseProgress computes progress over lessons ordered by position.
func NewCourseProgress(courseID int64, lessons []Lesson, completed map[int64]struct{}) CourseProgress {
	p := CourseProgress{
		CourseID:     courseID,
		TotalLessons: len(lessons),
	}
	for i := range lessons {
		if _, ok := completed[lessons[i].ID]; ok {
			p.CompletedLessons++
			continue
		}
		if p.NextLessonID == nil {
			id := lessons[i].ID
			p.NextLessonID = &id
		}
	}
	if p.TotalLessons > 0 {
		p.Percentage = p.CompletedLessons * 100 / p.TotalLessons
	}
	return p
}

// Started reports whether any lesson of the course is complete.
func (p CourseProgress) Started() bool {
	return p.CompletedLessons > 0
}

// Completed reports whether every lesson of a non-empty course is complete.
func (p CourseProgress) Completed() bool {
	return p.TotalLessons > 0 && p.CompletedLessons == p.TotalLessons
}
