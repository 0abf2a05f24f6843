package domain

import "time"

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSending   DeliveryStatus = "sending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	// DeliveryStatusCancelled marks rows withdrawn before sending, e.g. for a deleted account.
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

type DeliveryKind string

const (
	DeliveryKindWelcome       DeliveryKind = "welcome"
	DeliveryKindResetPassword DeliveryKind = "reset_password"
)

// MailDelivery is an outbound email persisted until it is sent.
type MailDelivery struct {
	ID           int64
	UserID       *int64
	Kind         DeliveryKind
	Recipient    string
	Subject      string
	Body         string
	Status       DeliveryStatus
	Attempts     int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SentAt       *time.Time
}
