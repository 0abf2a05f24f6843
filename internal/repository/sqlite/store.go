package sqlite

import (
	"context"
	"database/sql"

	"learnpath/internal/repository"
)

// Store bundles every repository backed by one database handle.
type Store struct {
	DB          *sql.DB
	Catalog     repository.CatalogRepository
	Users       repository.UserRepository
	Completions repository.LessonCompletionRepository
	Submissions repository.ProjectSubmissionRepository
	Votes       repository.VoteRepository
	Providers   repository.UserProviderRepository
	Flags       repository.FlagRepository
	Deliveries  repository.DeliveryRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:          db,
		Catalog:     NewCatalogRepository(db),
		Users:       NewUserRepository(db),
		Completions: NewLessonCompletionRepository(db),
		Submissions: NewProjectSubmissionRepository(db),
		Votes:       NewVoteRepository(db),
		Providers:   NewUserProviderRepository(db),
		Flags:       NewFlagRepository(db),
		Deliveries:  NewDeliveryRepository(db),
	}
}

// Init creates every table, parents first.
func (s *Store) Init(ctx context.Context) error {
	return InitAll(ctx,
		s.Catalog,
		s.Users,
		s.Completions,
		s.Submissions,
		s.Votes,
		s.Providers,
		s.Flags,
		s.Deliveries,
	)
}
