package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createVotesTable = `
CREATE TABLE IF NOT EXISTS votes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	voter_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	votable_type TEXT NOT NULL,
	votable_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(voter_id, votable_type, votable_id)
);
CREATE INDEX IF NOT EXISTS idx_votes_votable ON votes(votable_type, votable_id);
CREATE TRIGGER IF NOT EXISTS trg_project_submissions_delete_votes
AFTER DELETE ON project_submissions
BEGIN
	DELETE FROM votes WHERE votable_type = 'project_submission' AND votable_id = OLD.id;
END;
`

type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) repository.VoteRepository {
	return &VoteRepository{db: db}
}

func (r *VoteRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createVotesTable); err != nil {
		return fmt.Errorf("create votes table: %w", err)
	}
	return nil
}

func (r *VoteRepository) Create(ctx context.Context, v *domain.Vote) (int64, error) {
	v.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO votes (voter_id, votable_type, votable_id, created_at)
VALUES (?, ?, ?, ?)`,
		v.VoterID,
		v.VotableType,
		v.VotableID,
		v.CreatedAt,
	)
	if err != nil {
		return 0, insertErr("vote", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("vote last insert id: %w", err)
	}
	v.ID = id
	return id, nil
}

func (r *VoteRepository) Delete(ctx context.Context, voterID int64, votableType string, votableID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM votes WHERE voter_id=? AND votable_type=? AND votable_id=?`, voterID, votableType, votableID)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return requireAffected(res, "vote")
}

func (r *VoteRepository) Exists(ctx context.Context, voterID int64, votableType string, votableID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM votes WHERE voter_id=? AND votable_type=? AND votable_id=?`,
		voterID, votableType, votableID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query vote: %w", err)
	}
	return n > 0, nil
}

func (r *VoteRepository) Count(ctx context.Context, votableType string, votableID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE votable_type=? AND votable_id=?`, votableType, votableID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return n, nil
}
