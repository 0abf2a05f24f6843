package domain

import "time"

type FlagReason string

const (
	FlagReasonSpam          FlagReason = "spam"
	FlagReasonInappropriate FlagReason = "inappropriate"
	FlagReasonBroken        FlagReason = "broken"
	FlagReasonOther         FlagReason = "other"
)

type FlagStatus string

const (
	FlagStatusActive   FlagStatus = "active"
	FlagStatusResolved FlagStatus = "resolved"
)

type FlagAction string

const (
	FlagActionPending                  FlagAction = "pending"
	FlagActionDismiss                  FlagAction = "dismiss"
	FlagActionBan                      FlagAction = "ban"
	FlagActionRemovedProjectSubmission FlagAction = "removed_project_submission"
	FlagActionNotifiedUser             FlagAction = "notified_user"
)

// Flag is a report raised by a user against a project submission.
type Flag struct {
	ID                  int64
	FlaggerID           int64
	ProjectSubmissionID *int64
	Reason              FlagReason `validate:"oneof=spam inappropriate broken other"`
	Extra               string     `validate:"max=1000"`
	Status              FlagStatus
	TakenAction         FlagAction
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate checks the reason and free text.
func (f *Flag) Validate() error {
	return validateStruct(f)
}

// ValidResolution reports whether a moderator may resolve a flag with a.
func ValidResolution(a FlagAction) bool {
	switch a {
	case FlagActionDismiss, FlagActionBan, FlagActionRemovedProjectSubmission, FlagActionNotifiedUser:
		return true
	}
	return false
}
