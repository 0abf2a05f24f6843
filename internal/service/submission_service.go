package service

import (
	"context"
	"errors"
	"strings"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// SubmissionService manages project submissions and the likes cast on them.
type SubmissionService interface {
	Create(ctx context.Context, userID int64, in SubmissionInput) (*domain.ProjectSubmission, error)
	Update(ctx context.Context, userID, id int64, in SubmissionInput) (*domain.ProjectSubmission, error)
	Delete(ctx context.Context, userID, id int64) error
	Get(ctx context.Context, id int64) (*domain.ProjectSubmission, error)
	ListForLesson(ctx context.Context, lessonID int64) ([]domain.ProjectSubmission, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.ProjectSubmission, error)

	Vote(ctx context.Context, voterID, id int64) (int, error)
	Unvote(ctx context.Context, voterID, id int64) (int, error)
	VotedFor(ctx context.Context, voterID, id int64) (bool, error)
	Likes(ctx context.Context, id int64) (int, error)
}

type SubmissionInput struct {
	LessonID       int64
	RepoURL        string
	LivePreviewURL *string
	IsPublic       *bool
}

type submissionService struct {
	catalog     repository.CatalogRepository
	submissions repository.ProjectSubmissionRepository
	votes       repository.VoteRepository
}

func NewSubmissionService(catalog repository.CatalogRepository, submissions repository.ProjectSubmissionRepository, votes repository.VoteRepository) SubmissionService {
	return &submissionService{
		catalog:     catalog,
		submissions: submissions,
		votes:       votes,
	}
}

func (s *submissionService) Create(ctx context.Context, userID int64, in SubmissionInput) (*domain.ProjectSubmission, error) {
	lesson, err := s.catalog.GetLesson(ctx, in.LessonID)
	if err != nil {
		return nil, err
	}

	sub := &domain.ProjectSubmission{
		UserID:         userID,
		LessonID:       lesson.ID,
		RepoURL:  strings.TrimSpace(in.RepoURL),
		IsPublic: true,
	}
	if in.LivePreviewURL != nil {
		sub.LivePreviewURL = strings.TrimSpace(*in.LivePreviewURL)
	}
	if in.IsPublic != nil {
		sub.IsPublic = *in.IsPublic
	}

	errs := domain.ValidationErrors{}
	if !lesson.IsProject {
		errs.Add("lesson_id", "is not a project")
	}
	if err := collectErrors(errs.Err(), sub.Validate()); err != nil {
		return nil, err
	}

	if _, err := s.submissions.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			dup := domain.ValidationErrors{}
			dup.Add("lesson_id", "has already been taken")
			return nil, dup
		}
		return nil, err
	}
	return sub, nil
}

func (s *submissionService) Update(ctx context.Context, userID, id int64, in SubmissionInput) (*domain.ProjectSubmission, error) {
	sub, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.RepoURL != "" {
		sub.RepoURL = strings.TrimSpace(in.RepoURL)
	}
	if in.LivePreviewURL != nil {
		sub.LivePreviewURL = strings.TrimSpace(*in.LivePreviewURL)
	}
	if in.IsPublic != nil {
		sub.IsPublic = *in.IsPublic
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.submissions.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *submissionService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.submissions.Delete(ctx, id)
}

func (s *submissionService) owned(ctx context.Context, userID, id int64) (*domain.ProjectSubmission, error) {
	sub, err := s.submissions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrForbidden
	}
	return sub, nil
}

func (s *submissionService) Get(ctx context.Context, id int64) (*domain.ProjectSubmission, error) {
	return s.submissions.Get(ctx, id)
}

func (s *submissionService) ListForLesson(ctx context.Context, lessonID int64) ([]domain.ProjectSubmission, error) {
	if _, err := s.catalog.GetLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	return s.submissions.ListPublicByLesson(ctx, lessonID)
}

func (s *submissionService) ListByUser(ctx context.Context, userID int64) ([]domain.ProjectSubmission, error) {
	return s.submissions.ListByUser(ctx, userID)
}

// Vote likes a submission. Voting twice keeps a single vote.
func (s *submissionService) Vote(ctx context.Context, voterID, id int64) (int, error) {
	sub, err := s.submissions.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if sub.UserID == voterID {
		return 0, ErrOwnSubmission
	}

	_, err = s.votes.Create(ctx, &domain.Vote{
		VoterID:     voterID,
		VotableType: domain.VotableProjectSubmission,
		VotableID:   id,
	})
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return 0, err
	}
	return s.Likes(ctx, id)
}

func (s *submissionService) Unvote(ctx context.Context, voterID, id int64) (int, error) {
	if _, err := s.submissions.Get(ctx, id); err != nil {
		return 0, err
	}
	err := s.votes.Delete(ctx, voterID, domain.VotableProjectSubmission, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}
	return s.Likes(ctx, id)
}

func (s *submissionService) VotedFor(ctx context.Context, voterID, id int64) (bool, error) {
	return s.votes.Exists(ctx, voterID, domain.VotableProjectSubmission, id)
}

func (s *submissionService) Likes(ctx context.Context, id int64) (int, error) {
	return s.votes.Count(ctx, domain.VotableProjectSubmission, id)
}
