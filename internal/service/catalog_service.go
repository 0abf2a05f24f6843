package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// CatalogService exposes the read side of paths, courses and lessons, and seeds them.
type CatalogService interface {
	ListPaths(ctx context.Context) ([]domain.Path, error)
	GetPath(ctx context.Context, id int64) (*domain.Path, error)
	ListCourses(ctx context.Context, pathID int64) ([]domain.Course, error)
	GetCourse(ctx context.Context, id int64) (*domain.Course, error)
	ListLessons(ctx context.Context, courseID int64) ([]domain.Lesson, error)
	GetLesson(ctx context.Context, id int64) (*domain.Lesson, error)
	// DefaultPath returns nil when no path is marked default.
	DefaultPath(ctx context.Context) (*domain.Path, error)
	Seed(ctx context.Context, r io.Reader) (SeedResult, error)
	SeedFile(ctx context.Context, path string) (SeedResult, error)
}

// SeedResult counts the records created by a seed run.
type SeedResult struct {
	Paths   int
	Courses int
	Lessons int
}

type seedFile struct {
	Paths []seedPath `yaml:"paths"`
}

type seedPath struct {
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Default     bool         `yaml:"default"`
	Courses     []seedCourse `yaml:"courses"`
}

type seedCourse struct {
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Lessons     []seedLesson `yaml:"lessons"`
}

type seedLesson struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Project     bool   `yaml:"project"`
}

type catalogService struct {
	catalog repository.CatalogRepository
	logger  *logrus.Logger
}

func NewCatalogService(catalog repository.CatalogRepository, logger *logrus.Logger) CatalogService {
	if logger == nil {
		logger = logrus.New()
	}
	return &catalogService{catalog: catalog, logger: logger}
}

func (s *catalogService) ListPaths(ctx context.Context) ([]domain.Path, error) {
	return s.catalog.ListPaths(ctx)
}

func (s *catalogService) GetPath(ctx context.Context, id int64) (*domain.Path, error) {
	return s.catalog.GetPath(ctx, id)
}

func (s *catalogService) ListCourses(ctx context.Context, pathID int64) ([]domain.Course, error) {
	if _, err := s.catalog.GetPath(ctx, pathID); err != nil {
		return nil, err
	}
	return s.catalog.ListCourses(ctx, pathID)
}

func (s *catalogService) GetCourse(ctx context.Context, id int64) (*domain.Course, error) {
	return s.catalog.GetCourse(ctx, id)
}

func (s *catalogService) ListLessons(ctx context.Context, courseID int64) ([]domain.Lesson, error) {
	if _, err := s.catalog.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.catalog.ListLessons(ctx, courseID)
}

func (s *catalogService) GetLesson(ctx context.Context, id int64) (*domain.Lesson, error) {
	return s.catalog.GetLesson(ctx, id)
}

func (s *catalogService) DefaultPath(ctx context.Context) (*domain.Path, error) {
	p, err := s.catalog.DefaultPath(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *catalogService) SeedFile(ctx context.Context, path string) (SeedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return s.Seed(ctx, f)
}

// Seed creates the records of a YAML catalog that do not exist yet, matching by title.
func (s *catalogService) Seed(ctx context.Context, r io.Reader) (SeedResult, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return SeedResult{}, fmt.Errorf("decode seed file: %w", err)
	}

	var res SeedResult
	for i, sp := range file.Paths {
		path, created, err := s.ensurePath(ctx, i, sp)
		if err != nil {
			return res, err
		}
		if created {
			res.Paths++
		}
		for j, sc := range sp.Courses {
			course, created, err := s.ensureCourse(ctx, path.ID, j, sc)
			if err != nil {
				return res, err
			}
			if created {
				res.Courses++
			}
			for k, sl := range sc.Lessons {
				created, err := s.ensureLesson(ctx, course.ID, k, sl)
				if err != nil {
					return res, err
				}
				if created {
					res.Lessons++
				}
			}
		}
	}

	s.logger.Infof("catalog seeded: %d paths, %d courses, %d lessons created", res.Paths, res.Courses, res.Lessons)
	return res, nil
}

func (s *catalogService) ensurePath(ctx context.Context, pos int, sp seedPath) (*domain.Path, bool, error) {
	title := strings.TrimSpace(sp.Title)
	if title == "" {
		return nil, false, fmt.Errorf("seed path %d: title is required", pos)
	}
	existing, err := s.catalog.FindPathByTitle(ctx, title)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	path := &domain.Path{
		Title:       title,
		Description: sp.Description,
		Position:    pos,
		DefaultPath: sp.Default,
	}
	if _, err := s.catalog.CreatePath(ctx, path); err != nil {
		return nil, false, fmt.Errorf("seed path %q: %w", title, err)
	}
	return path, true, nil
}

func (s *catalogService) ensureCourse(ctx context.Context, pathID int64, pos int, sc seedCourse) (*domain.Course, bool, error) {
	title := strings.TrimSpace(sc.Title)
	if title == "" {
		return nil, false, fmt.Errorf("seed course %d: title is required", pos)
	}
	existing, err := s.catalog.FindCourseByTitle(ctx, pathID, title)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	course := &domain.Course{
		PathID:      pathID,
		Title:       title,
		Description: sc.Description,
		Position:    pos,
	}
	if _, err := s.catalog.CreateCourse(ctx, course); err != nil {
		return nil, false, fmt.Errorf("seed course %q: %w", title, err)
	}
	return course, true, nil
}

func (s *catalogService) ensureLesson(ctx context.Context, courseID int64, pos int, sl seedLesson) (bool, error) {
	title := strings.TrimSpace(sl.Title)
	if title == "" {
		return false, fmt.Errorf("seed lesson %d: title is required", pos)
	}
	_, err := s.catalog.FindLessonByTitle(ctx, courseID, title)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	lesson := &domain.Lesson{
		CourseID:    courseID,
		Title:       title,
		Description: sl.Description,
		Position:    pos,
		IsProject:   sl.Project,
	}
	if _, err := s.catalog.CreateLesson(ctx, lesson); err != nil {
		return false, fmt.Errorf("seed lesson %q: %w", title, err)
	}
	return true, nil
}
