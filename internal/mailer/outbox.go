package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// Outbox renders transactional emails, persists them and hands them to the dispatcher.
type Outbox struct {
	deliveries repository.DeliveryRepository
	dispatcher Dispatcher
	templates  *Templates
	siteURL    string
	logger     *logrus.Logger
}

func NewOutbox(deliveries repository.DeliveryRepository, dispatcher Dispatcher, templates *Templates, siteURL string, logger *logrus.Logger) *Outbox {
	if logger == nil {
		logger = logrus.New()
	}
	return &Outbox{
		deliveries: deliveries,
		dispatcher: dispatcher,
		templates:  templates,
		siteURL:    siteURL,
		logger:     logger,
	}
}

// QueueWelcome stores the welcome email for a freshly created user.
func (o *Outbox) QueueWelcome(ctx context.Context, user *domain.User, pathTitle string) (*domain.MailDelivery, error) {
	subject, body, err := o.templates.Welcome(WelcomeData{
		Username:  user.Username,
		PathTitle: pathTitle,
		SiteURL:   o.siteURL,
	})
	if err != nil {
		return nil, err
	}
	return o.queue(ctx, user, domain.DeliveryKindWelcome, subject, body)
}

// QueueResetPassword stores reset instructions carrying the raw token.
func (o *Outbox) QueueResetPassword(ctx context.Context, user *domain.User, token, validFor string) (*domain.MailDelivery, error) {
	subject, body, err := o.templates.ResetPassword(ResetPasswordData{
		Username: user.Username,
		ResetURL: fmt.Sprintf("%s/users/password/edit?reset_password_token=%s", o.siteURL, url.QueryEscape(token)),
		ValidFor: validFor,
	})
	if err != nil {
		return nil, err
	}
	return o.queue(ctx, user, domain.DeliveryKindResetPassword, subject, body)
}

// CancelForUser stops the user's unsent deliveries and marks them cancelled.
// It returns how many rows were cancelled.
func (o *Outbox) CancelForUser(ctx context.Context, userID int64) (int, error) {
	deliveries, err := o.deliveries.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, d := range deliveries {
		if d.Status != domain.DeliveryStatusPending && d.Status != domain.DeliveryStatusSending {
			continue
		}
		if o.dispatcher != nil {
			if err := o.dispatcher.Cancel(ctx, d.ID); err != nil {
				return cancelled, fmt.Errorf("cancel delivery %d: %w", d.ID, err)
			}
		}
		// the worker may have sent it before the cancel landed
		current, err := o.deliveries.Get(ctx, d.ID)
		if err != nil {
			return cancelled, err
		}
		if current.Status == domain.DeliveryStatusSent || current.Status == domain.DeliveryStatusFailed {
			continue
		}
		if err := o.deliveries.UpdateStatus(ctx, d.ID, domain.DeliveryStatusCancelled, nil); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	if cancelled > 0 {
		o.logger.WithField("user_id", userID).Infof("cancelled %d pending deliveries", cancelled)
	}
	return cancelled, nil
}

func (o *Outbox) queue(ctx context.Context, user *domain.User, kind domain.DeliveryKind, subject, body string) (*domain.MailDelivery, error) {
	userID := user.ID
	delivery := &domain.MailDelivery{
		UserID:    &userID,
		Kind:      kind,
		Recipient: user.Email,
		Subject:   subject,
		Body:      body,
		Status:    domain.DeliveryStatusPending,
	}
	if _, err := o.deliveries.Create(ctx, delivery); err != nil {
		return nil, fmt.Errorf("queue %s mail: %w", kind, err)
	}

	if o.dispatcher != nil {
		// the row stays pending and is picked up by Resume if this fails
		if err := o.dispatcher.Enqueue(ctx, delivery.ID); err != nil {
			o.logger.WithField("delivery_id", delivery.ID).Warnf("enqueue delivery: %v", err)
		}
	}
	return delivery, nil
}
