package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createCatalogTables = `
CREATE TABLE IF NOT EXISTS paths (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	default_path INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_paths_single_default ON paths(default_path) WHERE default_path = 1;
CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path_id INTEGER NOT NULL REFERENCES paths(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(path_id, title)
);
CREATE TABLE IF NOT EXISTS lessons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	is_project INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(course_id, title)
);
CREATE INDEX IF NOT EXISTS idx_lessons_course_id ON lessons(course_id);
`

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) repository.CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createCatalogTables); err != nil {
		return fmt.Errorf("create catalog tables: %w", err)
	}
	return nil
}

func (r *CatalogRepository) CreatePath(ctx context.Context, path *domain.Path) (int64, error) {
	path.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO paths (title, description, position, default_path, created_at)
VALUES (?, ?, ?, ?, ?)`,
		path.Title,
		path.Description,
		path.Position,
		boolInt(path.DefaultPath),
		path.CreatedAt,
	)
	if err != nil {
		return 0, insertErr("path", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("path last insert id: %w", err)
	}
	path.ID = id
	return id, nil
}

func (r *CatalogRepository) CreateCourse(ctx context.Context, course *domain.Course) (int64, error) {
	course.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO courses (path_id, title, description, position, created_at)
VALUES (?, ?, ?, ?, ?)`,
		course.PathID,
		course.Title,
		course.Description,
		course.Position,
		course.CreatedAt,
	)
	if err != nil {
		return 0, insertErr("course", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("course last insert id: %w", err)
	}
	course.ID = id
	return id, nil
}

func (r *CatalogRepository) CreateLesson(ctx context.Context, lesson *domain.Lesson) (int64, error) {
	lesson.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO lessons (course_id, title, description, position, is_project, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		lesson.CourseID,
		lesson.Title,
		lesson.Description,
		lesson.Position,
		boolInt(lesson.IsProject),
		lesson.CreatedAt,
	)
	if err != nil {
		return 0, insertErr("lesson", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("lesson last insert id: %w", err)
	}
	lesson.ID = id
	return id, nil
}

const (
	pathColumns   = `id, title, description, position, default_path, created_at`
	courseColumns = `id, path_id, title, description, position, created_at`
	lessonColumns = `id, course_id, title, description, position, is_project, created_at`
)

func (r *CatalogRepository) GetPath(ctx context.Context, id int64) (*domain.Path, error) {
	return scanPath(r.db.QueryRowContext(ctx, `SELECT `+pathColumns+` FROM paths WHERE id=?`, id))
}

func (r *CatalogRepository) GetCourse(ctx context.Context, id int64) (*domain.Course, error) {
	return scanCourse(r.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id=?`, id))
}

func (r *CatalogRepository) GetLesson(ctx context.Context, id int64) (*domain.Lesson, error) {
	return scanLesson(r.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id=?`, id))
}

func (r *CatalogRepository) FindPathByTitle(ctx context.Context, title string) (*domain.Path, error) {
	return scanPath(r.db.QueryRowContext(ctx, `SELECT `+pathColumns+` FROM paths WHERE title=?`, title))
}

func (r *CatalogRepository) FindCourseByTitle(ctx context.Context, pathID int64, title string) (*domain.Course, error) {
	return scanCourse(r.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE path_id=? AND title=?`, pathID, title))
}

func (r *CatalogRepository) FindLessonByTitle(ctx context.Context, courseID int64, title string) (*domain.Lesson, error) {
	return scanLesson(r.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE course_id=? AND title=?`, courseID, title))
}

func (r *CatalogRepository) DefaultPath(ctx context.Context) (*domain.Path, error) {
	return scanPath(r.db.QueryRowContext(ctx, `SELECT `+pathColumns+` FROM paths WHERE default_path=1 LIMIT 1`))
}

func (r *CatalogRepository) ListPaths(ctx context.Context) ([]domain.Path, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pathColumns+` FROM paths ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	var paths []domain.Path
	for rows.Next() {
		p, err := scanPath(rows)
		if err != nil {
			return nil, err
		}
		paths = append(paths, *p)
	}
	return paths, rows.Err()
}

func (r *CatalogRepository) ListCourses(ctx context.Context, pathID int64) ([]domain.Course, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE path_id=? ORDER BY position ASC, id ASC`, pathID)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

func (r *CatalogRepository) ListLessons(ctx context.Context, courseID int64) ([]domain.Lesson, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE course_id=? ORDER BY position ASC, id ASC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []domain.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *l)
	}
	return lessons, rows.Err()
}

func scanPath(row scanner) (*domain.Path, error) {
	var p domain.Path
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Position, &p.DefaultPath, &p.CreatedAt); err != nil {
		return nil, notFound(err, "path")
	}
	return &p, nil
}

func scanCourse(row scanner) (*domain.Course, error) {
	var c domain.Course
	if err := row.Scan(&c.ID, &c.PathID, &c.Title, &c.Description, &c.Position, &c.CreatedAt); err != nil {
		return nil, notFound(err, "course")
	}
	return &c, nil
}

func scanLesson(row scanner) (*domain.Lesson, error) {
	var l domain.Lesson
	if err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.Description, &l.Position, &l.IsProject, &l.CreatedAt); err != nil {
		return nil, notFound(err, "lesson")
	}
	return &l, nil
}
