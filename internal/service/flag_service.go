package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// FlagService handles reports raised against project submissions.
type FlagService interface {
	Create(ctx context.Context, flaggerID, submissionID int64, reason domain.FlagReason, extra string) (*domain.Flag, error)
	Resolve(ctx context.Context, flagID int64, action domain.FlagAction) (*domain.Flag, error)
	// DismissedFlags lists flags raised by the user that a moderator dismissed.
	DismissedFlags(ctx context.Context, userID int64) ([]domain.Flag, error)
	ListActive(ctx context.Context) ([]domain.Flag, error)
}

type flagService struct {
	flags       repository.FlagRepository
	submissions repository.ProjectSubmissionRepository
	logger      *logrus.Logger
}

func NewFlagService(flags repository.FlagRepository, submissions repository.ProjectSubmissionRepository, logger *logrus.Logger) FlagService {
	if logger == nil {
		logger = logrus.New()
	}
	return &flagService{
		flags:       flags,
		submissions: submissions,
		logger:      logger,
	}
}

func (s *flagService) Create(ctx context.Context, flaggerID, submissionID int64, reason domain.FlagReason, extra string) (*domain.Flag, error) {
	sub, err := s.submissions.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID == flaggerID {
		return nil, ErrOwnSubmission
	}

	flag := &domain.Flag{
		FlaggerID:           flaggerID,
		ProjectSubmissionID: &sub.ID,
		Reason:              reason,
		Extra:               strings.TrimSpace(extra),
	}
	if err := flag.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.flags.Create(ctx, flag); err != nil {
		return nil, err
	}
	return flag, nil
}

func (s *flagService) Resolve(ctx context.Context, flagID int64, action domain.FlagAction) (*domain.Flag, error) {
	if !domain.ValidResolution(action) {
		return nil, ErrInvalidAction
	}
	flag, err := s.flags.Get(ctx, flagID)
	if err != nil {
		return nil, err
	}
	if flag.Status == domain.FlagStatusResolved {
		return nil, ErrFlagResolved
	}

	logger := s.logger.WithFields(logrus.Fields{"flag_id": flag.ID, "action": action})
	if flag.ProjectSubmissionID != nil {
		switch action {
		case domain.FlagActionBan:
			if err := s.submissions.SetBanned(ctx, *flag.ProjectSubmissionID, true); err != nil {
				return nil, err
			}
		case domain.FlagActionRemovedProjectSubmission:
			if err := s.submissions.Delete(ctx, *flag.ProjectSubmissionID); err != nil {
				return nil, err
			}
		}
	} else if action == domain.FlagActionBan || action == domain.FlagActionRemovedProjectSubmission {
		logger.Warn("flagged submission no longer exists")
	}

	if err := s.flags.Resolve(ctx, flag.ID, action); err != nil {
		return nil, err
	}
	logger.Info("flag resolved")
	return s.flags.Get(ctx, flag.ID)
}

func (s *flagService) DismissedFlags(ctx context.Context, userID int64) ([]domain.Flag, error) {
	action := domain.FlagActionDismiss
	return s.flags.ListByFlagger(ctx, userID, &action)
}

func (s *flagService) ListActive(ctx context.Context) ([]domain.Flag, error) {
	return s.flags.ListActive(ctx)
}
