package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	username TEXT NOT NULL,
	learning_goal TEXT NOT NULL DEFAULT '',
	banned INTEGER NOT NULL DEFAULT 0,
	admin INTEGER NOT NULL DEFAULT 0,
	path_id INTEGER NULL REFERENCES paths(id) ON DELETE SET NULL,
	password_hash TEXT NOT NULL,
	avatar_key TEXT NOT NULL DEFAULT '',
	reset_password_token_digest TEXT NOT NULL DEFAULT '',
	reset_password_sent_at DATETIME NULL,
	remember_created_at DATETIME NULL,
	sign_in_count INTEGER NOT NULL DEFAULT 0,
	current_sign_in_at DATETIME NULL,
	last_sign_in_at DATETIME NULL,
	current_sign_in_ip TEXT NOT NULL DEFAULT '',
	last_sign_in_ip TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_reset_digest ON users(reset_password_token_digest);
`

const userColumns = `id, email, username, learning_goal, banned, admin, path_id, password_hash, avatar_key,
reset_password_token_digest, reset_password_sent_at, remember_created_at,
sign_in_count, current_sign_in_at, last_sign_in_at, current_sign_in_ip, last_sign_in_ip,
created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (email, username, learning_goal, banned, admin, path_id, password_hash, avatar_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.Username,
		user.LearningGoal,
		boolInt(user.Banned),
		boolInt(user.Admin),
		nullInt64(user.PathID),
		user.PasswordHash,
		user.AvatarKey,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return 0, insertErr("user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

// Update writes profile, credential and trackable columns. banned and admin are
// owned by SetBanned and SetAdmin and are reloaded into user afterwards.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET email=?, username=?, learning_goal=?, path_id=?, password_hash=?, avatar_key=?,
	reset_password_token_digest=?, reset_password_sent_at=?, remember_created_at=?,
	sign_in_count=?, current_sign_in_at=?, last_sign_in_at=?, current_sign_in_ip=?, last_sign_in_ip=?,
	updated_at=?
WHERE id=?`,
		user.Email,
		user.Username,
		user.LearningGoal,
		nullInt64(user.PathID),
		user.PasswordHash,
		user.AvatarKey,
		user.ResetPasswordTokenDigest,
		nullTime(user.ResetPasswordSentAt),
		nullTime(user.RememberCreatedAt),
		user.SignInCount,
		nullTime(user.CurrentSignInAt),
		nullTime(user.LastSignInAt),
		user.CurrentSignInIP,
		user.LastSignInIP,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if err := requireAffected(res, "user"); err != nil {
		return err
	}

	var banned, admin bool
	if err := r.db.QueryRowContext(ctx, `SELECT banned, admin FROM users WHERE id=?`, user.ID).Scan(&banned, &admin); err != nil {
		return notFound(err, "user")
	}
	user.Banned = banned
	user.Admin = admin
	return nil
}

func (r *UserRepository) SetPath(ctx context.Context, id, pathID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET path_id=?, updated_at=? WHERE id=?`, pathID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set user path: %w", err)
	}
	return requireAffected(res, "user")
}

func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET banned=?, updated_at=? WHERE id=?`, boolInt(banned), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set user banned: %w", err)
	}
	return requireAffected(res, "user")
}

func (r *UserRepository) SetAdmin(ctx context.Context, id int64, admin bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET admin=?, updated_at=? WHERE id=?`, boolInt(admin), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set user admin: %w", err)
	}
	return requireAffected(res, "user")
}

// Delete removes the user; completions, submissions, providers, flags and votes cascade.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res, "user")
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByResetDigest(ctx context.Context, digest string) (*domain.User, error) {
	if digest == "" {
		return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE reset_password_token_digest = ?`, digest)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		user            domain.User
		pathID          sql.NullInt64
		resetSentAt     sql.NullTime
		rememberAt      sql.NullTime
		currentSignInAt sql.NullTime
		lastSignInAt    sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.LearningGoal,
		&user.Banned,
		&user.Admin,
		&pathID,
		&user.PasswordHash,
		&user.AvatarKey,
		&user.ResetPasswordTokenDigest,
		&resetSentAt,
		&rememberAt,
		&user.SignInCount,
		&currentSignInAt,
		&lastSignInAt,
		&user.CurrentSignInIP,
		&user.LastSignInIP,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, notFound(err, "user")
	}
	user.PathID = int64Ptr(pathID)
	user.ResetPasswordSentAt = timePtr(resetSentAt)
	user.RememberCreatedAt = timePtr(rememberAt)
	user.CurrentSignInAt = timePtr(currentSignInAt)
	user.LastSignInAt = timePtr(lastSignInAt)
	return &user, nil
}
