package repository

import (
	"context"

	"learnpath/internal/domain"
)

// CatalogRepository exposes paths, courses and lessons.
type CatalogRepository interface {
	Init(ctx context.Context) error
	CreatePath(ctx context.Context, path *domain.Path) (int64, error)
	CreateCourse(ctx context.Context, course *domain.Course) (int64, error)
	CreateLesson(ctx context.Context, lesson *domain.Lesson) (int64, error)
	GetPath(ctx context.Context, id int64) (*domain.Path, error)
	GetCourse(ctx context.Context, id int64) (*domain.Course, error)
	GetLesson(ctx context.Context, id int64) (*domain.Lesson, error)
	FindPathByTitle(ctx context.Context, title string) (*domain.Path, error)
	FindCourseByTitle(ctx context.Context, pathID int64, title string) (*domain.Course, error)
	FindLessonByTitle(ctx context.Context, courseID int64, title string) (*domain.Lesson, error)
	DefaultPath(ctx context.Context) (*domain.Path, error)
	ListPaths(ctx context.Context) ([]domain.Path, error)
	ListCourses(ctx context.Context, pathID int64) ([]domain.Course, error)
	ListLessons(ctx context.Context, courseID int64) ([]domain.Lesson, error)
}

// LessonCompletionRepository tracks completed lessons per student.
type LessonCompletionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, c *domain.LessonCompletion) (int64, error)
	Delete(ctx context.Context, studentID, lessonID int64) error
	CompletedLessonIDs(ctx context.Context, studentID int64) ([]int64, error)
	Latest(ctx context.Context, studentID int64) (*domain.LessonCompletion, error)
	ListByStudent(ctx context.Context, studentID int64) ([]domain.LessonCompletion, error)
}

// ProjectSubmissionRepository stores project submissions.
type ProjectSubmissionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, s *domain.ProjectSubmission) (int64, error)
	Update(ctx context.Context, s *domain.ProjectSubmission) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.ProjectSubmission, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.ProjectSubmission, error)
	ListPublicByLesson(ctx context.Context, lessonID int64) ([]domain.ProjectSubmission, error)
}

// VoteRepository records likes cast by voters.
type VoteRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, v *domain.Vote) (int64, error)
	Delete(ctx context.Context, voterID int64, votableType string, votableID int64) error
	Exists(ctx context.Context, voterID int64, votableType string, votableID int64) (bool, error)
	Count(ctx context.Context, votableType string, votableID int64) (int, error)
}

// FlagRepository stores reports against submissions.
type FlagRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, f *domain.Flag) (int64, error)
	Resolve(ctx context.Context, id int64, action domain.FlagAction) error
	Get(ctx context.Context, id int64) (*domain.Flag, error)
	ListByFlagger(ctx context.Context, flaggerID int64, action *domain.FlagAction) ([]domain.Flag, error)
	ListActive(ctx context.Context) ([]domain.Flag, error)
}

// DeliveryRepository is the outbound mail outbox.
type DeliveryRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, d *domain.MailDelivery) (int64, error)
	Get(ctx context.Context, id int64) (*domain.MailDelivery, error)
	UpdateStatus(ctx context.Context, id int64, status domain.DeliveryStatus, errorMessage *string) error
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	MarkSent(ctx context.Context, id int64) error
	ListByStatuses(ctx context.Context, statuses ...domain.DeliveryStatus) ([]domain.MailDelivery, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.MailDelivery, error)
}
