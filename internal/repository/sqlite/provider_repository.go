package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createUserProvidersTable = `
CREATE TABLE IF NOT EXISTS user_providers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	provider TEXT NOT NULL,
	uid TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(provider, uid)
);
CREATE INDEX IF NOT EXISTS idx_user_providers_user ON user_providers(user_id);
`

type UserProviderRepository struct {
	db *sql.DB
}

func NewUserProviderRepository(db *sql.DB) repository.UserProviderRepository {
	return &UserProviderRepository{db: db}
}

func (r *UserProviderRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUserProvidersTable); err != nil {
		return fmt.Errorf("create user_providers table: %w", err)
	}
	return nil
}

func (r *UserProviderRepository) Create(ctx context.Context, p *domain.UserProvider) (int64, error) {
	p.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO user_providers (user_id, provider, uid, created_at)
VALUES (?, ?, ?, ?)`,
		p.UserID,
		p.Provider,
		p.UID,
		p.CreatedAt,
	)
	if err != nil {
		return 0, insertErr("user provider", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user provider last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *UserProviderRepository) Find(ctx context.Context, provider, uid string) (*domain.UserProvider, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, provider, uid, created_at
FROM user_providers
WHERE provider=? AND uid=?`, provider, uid)
	return scanProvider(row)
}

func (r *UserProviderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.UserProvider, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, provider, uid, created_at
FROM user_providers
WHERE user_id=?
ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user providers: %w", err)
	}
	defer rows.Close()

	var out []domain.UserProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProvider(row scanner) (*domain.UserProvider, error) {
	var p domain.UserProvider
	if err := row.Scan(&p.ID, &p.UserID, &p.Provider, &p.UID, &p.CreatedAt); err != nil {
		return nil, notFound(err, "user provider")
	}
	return &p, nil
}
