package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createProjectSubmissionsTable = `
CREATE TABLE IF NOT EXISTS project_submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	lesson_id INTEGER NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	repo_url TEXT NOT NULL,
	live_preview_url TEXT NOT NULL DEFAULT '',
	is_public INTEGER NOT NULL DEFAULT 1,
	banned INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(user_id, lesson_id)
);
CREATE INDEX IF NOT EXISTS idx_project_submissions_lesson ON project_submissions(lesson_id);
`

// likes are counted from the votes table, which is created by VoteRepository.
const submissionColumns = `s.id, s.user_id, s.lesson_id, s.repo_url, s.live_preview_url, s.is_public, s.banned,
(SELECT COUNT(*) FROM votes v WHERE v.votable_type='` + domain.VotableProjectSubmission + `' AND v.votable_id=s.id),
s.created_at, s.updated_at`

type ProjectSubmissionRepository struct {
	db *sql.DB
}

func NewProjectSubmissionRepository(db *sql.DB) repository.ProjectSubmissionRepository {
	return &ProjectSubmissionRepository{db: db}
}

func (r *ProjectSubmissionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createProjectSubmissionsTable); err != nil {
		return fmt.Errorf("create project_submissions table: %w", err)
	}
	return nil
}

func (r *ProjectSubmissionRepository) Create(ctx context.Context, s *domain.ProjectSubmission) (int64, error) {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	res, err := r.db.ExecContext(ctx, `
INSERT INTO project_submissions (user_id, lesson_id, repo_url, live_preview_url, is_public, banned, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.UserID,
		s.LessonID,
		s.RepoURL,
		s.LivePreviewURL,
		boolInt(s.IsPublic),
		boolInt(s.Banned),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return 0, insertErr("project submission", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("project submission last insert id: %w", err)
	}
	s.ID = id
	return id, nil
}

func (r *ProjectSubmissionRepository) Update(ctx context.Context, s *domain.ProjectSubmission) error {
	s.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE project_submissions
SET repo_url=?, live_preview_url=?, is_public=?, updated_at=?
WHERE id=?`,
		s.RepoURL,
		s.LivePreviewURL,
		boolInt(s.IsPublic),
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("update project submission: %w", err)
	}
	return requireAffected(res, "project submission")
}

func (r *ProjectSubmissionRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE project_submissions SET banned=?, updated_at=? WHERE id=?`, boolInt(banned), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set project submission banned: %w", err)
	}
	return requireAffected(res, "project submission")
}

func (r *ProjectSubmissionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM project_submissions WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete project submission: %w", err)
	}
	return requireAffected(res, "project submission")
}

func (r *ProjectSubmissionRepository) Get(ctx context.Context, id int64) (*domain.ProjectSubmission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM project_submissions s WHERE s.id=?`, id)
	return scanSubmission(row)
}

func (r *ProjectSubmissionRepository) ListByUser(ctx context.Context, userID int64) ([]domain.ProjectSubmission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM project_submissions s WHERE s.user_id=? ORDER BY s.created_at DESC, s.id DESC`, userID)
}

func (r *ProjectSubmissionRepository) ListPublicByLesson(ctx context.Context, lessonID int64) ([]domain.ProjectSubmission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM project_submissions s
WHERE s.lesson_id=? AND s.is_public=1 AND s.banned=0
ORDER BY s.created_at DESC, s.id DESC`, lessonID)
}

func (r *ProjectSubmissionRepository) list(ctx context.Context, query string, args ...any) ([]domain.ProjectSubmission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query project submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.ProjectSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSubmission(row scanner) (*domain.ProjectSubmission, error) {
	var s domain.ProjectSubmission
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.LessonID,
		&s.RepoURL,
		&s.LivePreviewURL,
		&s.IsPublic,
		&s.Banned,
		&s.Likes,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, notFound(err, "project submission")
	}
	return &s, nil
}
