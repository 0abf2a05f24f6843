package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// Mailer queues transactional emails. Implemented by *mailer.Outbox.
type Mailer interface {
	QueueWelcome(ctx context.Context, user *domain.User, pathTitle string) (*domain.MailDelivery, error)
	QueueResetPassword(ctx context.Context, user *domain.User, token, validFor string) (*domain.MailDelivery, error)
	CancelForUser(ctx context.Context, userID int64) (int, error)
}

// afterCreate runs the side effects of a new account, in order:
// the welcome email (skipped in staging) then enrollment into the default path.
type afterCreate struct {
	users   repository.UserRepository
	catalog repository.CatalogRepository
	mail    Mailer
	staging bool
	logger  *logrus.Logger
}

func (h *afterCreate) run(ctx context.Context, user *domain.User) {
	logger := h.logger.WithField("user_id", user.ID)

	defaultPath, err := h.catalog.DefaultPath(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Warnf("lookup default path: %v", err)
	}

	h.sendWelcome(ctx, user, defaultPath, logger)
	h.enroll(ctx, user, defaultPath, logger)
}

func (h *afterCreate) sendWelcome(ctx context.Context, user *domain.User, path *domain.Path, logger *logrus.Entry) {
	if h.staging || h.mail == nil {
		return
	}
	title := ""
	if path != nil {
		title = path.Title
	}
	if _, err := h.mail.QueueWelcome(ctx, user, title); err != nil {
		logger.Warnf("queue welcome email: %v", err)
	}
}

func (h *afterCreate) enroll(ctx context.Context, user *domain.User, path *domain.Path, logger *logrus.Entry) {
	if path == nil {
		return
	}
	if err := h.users.SetPath(ctx, user.ID, path.ID); err != nil {
		logger.Warnf("enroll in default path: %v", err)
		return
	}
	id := path.ID
	user.PathID = &id
}
