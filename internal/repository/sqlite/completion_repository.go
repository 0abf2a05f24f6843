package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createLessonCompletionsTable = `
CREATE TABLE IF NOT EXISTS lesson_completions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	lesson_id INTEGER NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	course_id INTEGER NOT NULL,
	path_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(student_id, lesson_id)
);
CREATE INDEX IF NOT EXISTS idx_lesson_completions_student ON lesson_completions(student_id, created_at);
`

type LessonCompletionRepository struct {
	db *sql.DB
}

func NewLessonCompletionRepository(db *sql.DB) repository.LessonCompletionRepository {
	return &LessonCompletionRepository{db: db}
}

func (r *LessonCompletionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createLessonCompletionsTable); err != nil {
		return fmt.Errorf("create lesson_completions table: %w", err)
	}
	return nil
}

func (r *LessonCompletionRepository) Create(ctx context.Context, c *domain.LessonCompletion) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO lesson_completions (student_id, lesson_id, course_id, path_id, created_at)
VALUES (?, ?, ?, ?, ?)`,
		c.StudentID,
		c.LessonID,
		c.CourseID,
		c.PathID,
		c.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, insertErr("lesson completion", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("lesson completion last insert id: %w", err)
	}
	c.ID = id
	return id, nil
}

func (r *LessonCompletionRepository) Delete(ctx context.Context, studentID, lessonID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lesson_completions WHERE student_id=? AND lesson_id=?`, studentID, lessonID)
	if err != nil {
		return fmt.Errorf("delete lesson completion: %w", err)
	}
	return requireAffected(res, "lesson completion")
}

func (r *LessonCompletionRepository) CompletedLessonIDs(ctx context.Context, studentID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT lesson_id FROM lesson_completions WHERE student_id=? ORDER BY id ASC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query completed lesson ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lesson id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Latest returns the completion with the greatest created_at, the newest id breaking ties.
func (r *LessonCompletionRepository) Latest(ctx context.Context, studentID int64) (*domain.LessonCompletion, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, student_id, lesson_id, course_id, path_id, created_at
FROM lesson_completions
WHERE student_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1`, studentID)
	return scanCompletion(row)
}

func (r *LessonCompletionRepository) ListByStudent(ctx context.Context, studentID int64) ([]domain.LessonCompletion, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, student_id, lesson_id, course_id, path_id, created_at
FROM lesson_completions
WHERE student_id=?
ORDER BY created_at ASC, id ASC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query lesson completions: %w", err)
	}
	defer rows.Close()

	var out []domain.LessonCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCompletion(row scanner) (*domain.LessonCompletion, error) {
	var c domain.LessonCompletion
	if err := row.Scan(&c.ID, &c.StudentID, &c.LessonID, &c.CourseID, &c.PathID, &c.CreatedAt); err != nil {
		return nil, notFound(err, "lesson completion")
	}
	return &c, nil
}
