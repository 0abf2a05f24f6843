package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"learnpath/internal/cache"
	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const progressTTL = time.Hour

// ProgressService answers lesson completion questions for a user.
type ProgressService interface {
	// Tracker returns a per-user view that memoizes course progress for its lifetime.
	Tracker(userID int64) *ProgressTracker
	ProgressFor(ctx context.Context, userID, courseID int64) (domain.CourseProgress, error)
	Completed(ctx context.Context, userID, lessonID int64) (bool, error)
	LatestCompletedLesson(ctx context.Context, userID int64) (*domain.Lesson, error)
	CompletedLessons(ctx context.Context, userID int64) ([]domain.Lesson, error)
	Complete(ctx context.Context, userID, lessonID int64) (*domain.LessonCompletion, error)
	Uncomplete(ctx context.Context, userID, lessonID int64) error
}

type progressService struct {
	catalog     repository.CatalogRepository
	completions repository.LessonCompletionRepository
	cache       cache.Cache
	logger      *logrus.Logger
}

func NewProgressService(catalog repository.CatalogRepository, completions repository.LessonCompletionRepository, c cache.Cache, logger *logrus.Logger) ProgressService {
	if c == nil {
		c = cache.NewMemory()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &progressService{
		catalog:     catalog,
		completions: completions,
		cache:       c,
		logger:      logger,
	}
}

func progressKeyPrefix(userID int64) string {
	return fmt.Sprintf("progress:%d:", userID)
}

func progressKey(userID, courseID int64) string {
	return fmt.Sprintf("progress:%d:%d", userID, courseID)
}

// ProgressTracker computes course progress at most once per course.
type ProgressTracker struct {
	svc    *progressService
	userID int64

	mu   sync.Mutex
	memo map[int64]domain.CourseProgress
}

func (s *progressService) Tracker(userID int64) *ProgressTracker {
	return &ProgressTracker{
		svc:    s,
		userID: userID,
		memo:   make(map[int64]domain.CourseProgress),
	}
}

func (t *ProgressTracker) ProgressFor(ctx context.Context, courseID int64) (domain.CourseProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.memo[courseID]; ok {
		return p, nil
	}
	p, err := t.svc.load(ctx, t.userID, courseID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	t.memo[courseID] = p
	return p, nil
}

// Reset drops memoized results, e.g. after the tracker's user completed a lesson.
func (t *ProgressTracker) Reset() {
	t.mu.Lock()
	t.memo = make(map[int64]domain.CourseProgress)
	t.mu.Unlock()
}

func (s *progressService) ProgressFor(ctx context.Context, userID, courseID int64) (domain.CourseProgress, error) {
	return s.Tracker(userID).ProgressFor(ctx, courseID)
}

func (s *progressService) load(ctx context.Context, userID, courseID int64) (domain.CourseProgress, error) {
	key := progressKey(userID, courseID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var p domain.CourseProgress
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warnf("progress cache get %s: %v", key, err)
	}

	if _, err := s.catalog.GetCourse(ctx, courseID); err != nil {
		return domain.CourseProgress{}, err
	}
	lessons, err := s.catalog.ListLessons(ctx, courseID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	completed, err := s.completedSet(ctx, userID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	p := domain.NewCourseProgress(courseID, lessons, completed)

	if raw, err := json.Marshal(p); err == nil {
		if err := s.cache.Set(ctx, key, raw, progressTTL); err != nil {
			s.logger.Warnf("progress cache set %s: %v", key, err)
		}
	}
	return p, nil
}

func (s *progressService) completedSet(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	ids, err := s.completions.CompletedLessonIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *progressService) Completed(ctx context.Context, userID, lessonID int64) (bool, error) {
	set, err := s.completedSet(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := set[lessonID]
	return ok, nil
}

// LatestCompletedLesson returns nil when the user has not completed anything.
func (s *progressService) LatestCompletedLesson(ctx context.Context, userID int64) (*domain.Lesson, error) {
	latest, err := s.completions.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.catalog.GetLesson(ctx, latest.LessonID)
}

func (s *progressService) CompletedLessons(ctx context.Context, userID int64) ([]domain.Lesson, error) {
	completions, err := s.completions.ListByStudent(ctx, userID)
	if err != nil {
		return nil, err
	}
	lessons := make([]domain.Lesson, 0, len(completions))
	for _, c := range completions {
		lesson, err := s.catalog.GetLesson(ctx, c.LessonID)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *lesson)
	}
	return lessons, nil
}

func (s *progressService) Complete(ctx context.Context, userID, lessonID int64) (*domain.LessonCompletion, error) {
	lesson, err := s.catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	course, err := s.catalog.GetCourse(ctx, lesson.CourseID)
	if err != nil {
		return nil, err
	}

	completion := &domain.LessonCompletion{
		StudentID: userID,
		LessonID:  lesson.ID,
		CourseID:  course.ID,
		PathID:    course.PathID,
	}
	if _, err := s.completions.Create(ctx, completion); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.findCompletion(ctx, userID, lessonID)
		}
		return nil, err
	}

	s.invalidate(ctx, userID)
	return completion, nil
}

func (s *progressService) findCompletion(ctx context.Context, userID, lessonID int64) (*domain.LessonCompletion, error) {
	completions, err := s.completions.ListByStudent(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range completions {
		if completions[i].LessonID == lessonID {
			return &completions[i], nil
		}
	}
	return nil, fmt.Errorf("lesson completion: %w", repository.ErrNotFound)
}

// Uncomplete is a no-op when the lesson was not completed.
func (s *progressService) Uncomplete(ctx context.Context, userID, lessonID int64) error {
	if err := s.completions.Delete(ctx, userID, lessonID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *progressService) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.DeletePrefix(ctx, progressKeyPrefix(userID)); err != nil {
		s.logger.WithField("user_id", userID).Warnf("invalidate progress cache: %v", err)
	}
}
