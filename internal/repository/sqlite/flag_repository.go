package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createFlagsTable = `
CREATE TABLE IF NOT EXISTS flags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	flagger_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	project_submission_id INTEGER NULL REFERENCES project_submissions(id) ON DELETE SET NULL,
	reason TEXT NOT NULL,
	extra TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	taken_action TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_flags_flagger ON flags(flagger_id, taken_action);
`

const flagColumns = `id, flagger_id, project_submission_id, reason, extra, status, taken_action, created_at, updated_at`

type FlagRepository struct {
	db *sql.DB
}

func NewFlagRepository(db *sql.DB) repository.FlagRepository {
	return &FlagRepository{db: db}
}

func (r *FlagRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createFlagsTable); err != nil {
		return fmt.Errorf("create flags table: %w", err)
	}
	return nil
}

func (r *FlagRepository) Create(ctx context.Context, f *domain.Flag) (int64, error) {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.Status == "" {
		f.Status = domain.FlagStatusActive
	}
	if f.TakenAction == "" {
		f.TakenAction = domain.FlagActionPending
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO flags (flagger_id, project_submission_id, reason, extra, status, taken_action, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FlaggerID,
		nullInt64(f.ProjectSubmissionID),
		string(f.Reason),
		f.Extra,
		string(f.Status),
		string(f.TakenAction),
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return 0, insertErr("flag", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("flag last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

func (r *FlagRepository) Resolve(ctx context.Context, id int64, action domain.FlagAction) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE flags
SET status=?, taken_action=?, updated_at=?
WHERE id=?`,
		string(domain.FlagStatusResolved),
		string(action),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("resolve flag: %w", err)
	}
	return requireAffected(res, "flag")
}

func (r *FlagRepository) Get(ctx context.Context, id int64) (*domain.Flag, error) {
	return scanFlag(r.db.QueryRowContext(ctx, `SELECT `+flagColumns+` FROM flags WHERE id=?`, id))
}

// ListByFlagger returns the flags raised by a user, optionally narrowed to one taken action.
func (r *FlagRepository) ListByFlagger(ctx context.Context, flaggerID int64, action *domain.FlagAction) ([]domain.Flag, error) {
	if action == nil {
		return r.list(ctx, `SELECT `+flagColumns+` FROM flags WHERE flagger_id=? ORDER BY id ASC`, flaggerID)
	}
	return r.list(ctx, `SELECT `+flagColumns+` FROM flags WHERE flagger_id=? AND taken_action=? ORDER BY id ASC`, flaggerID, string(*action))
}

func (r *FlagRepository) ListActive(ctx context.Context) ([]domain.Flag, error) {
	return r.list(ctx, `SELECT `+flagColumns+` FROM flags WHERE status=? ORDER BY id ASC`, string(domain.FlagStatusActive))
}

func (r *FlagRepository) list(ctx context.Context, query string, args ...any) ([]domain.Flag, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	var out []domain.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func scanFlag(row scanner) (*domain.Flag, error) {
	var (
		f            domain.Flag
		submissionID sql.NullInt64
		reason       string
		status       string
		action       string
	)
	if err := row.Scan(&f.ID, &f.FlaggerID, &submissionID, &reason, &f.Extra, &status, &action, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, notFound(err, "flag")
	}
	f.ProjectSubmissionID = int64Ptr(submissionID)
	f.Reason = domain.FlagReason(reason)
	f.Status = domain.FlagStatus(status)
	f.TakenAction = domain.FlagAction(action)
	return &f, nil
}
