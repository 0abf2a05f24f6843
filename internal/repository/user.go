package repository

import (
	"context"

	"learnpath/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	Update(ctx context.Context, user *domain.User) error
	SetPath(ctx context.Context, id, pathID int64) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetAdmin(ctx context.Context, id int64, admin bool) error
	Delete(ctx context.Context, id int64) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByResetDigest(ctx context.Context, digest string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// UserProviderRepository stores OAuth identities linked to users.
type UserProviderRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, p *domain.UserProvider) (int64, error)
	Find(ctx context.Context, provider, uid string) (*domain.UserProvider, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.UserProvider, error)
}
