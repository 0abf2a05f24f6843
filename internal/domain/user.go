package domain

import "time"

// User represents a learner account.
type User struct {
	ID                       int64
	Email                    string `validate:"required,mailto"`
	Username                 string `validate:"min=2,max=100"`
	LearningGoal             string `validate:"max=1700"`
	Banned                   bool
	Admin                    bool
	PathID                   *int64
	PasswordHash             string
	AvatarKey                string
	ResetPasswordTokenDigest string
	ResetPasswordSentAt      *time.Time
	RememberCreatedAt        *time.Time
	SignInCount              int
	CurrentSignInAt          *time.Time
	LastSignInAt             *time.Time
	CurrentSignInIP          string
	LastSignInIP             string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// ActiveForAuthentication reports whether the user may sign in.
func (u *User) ActiveForAuthentication() bool {
	return !u.Banned
}

// InactiveMessage is the reason returned to a user refused at sign in.
func (u *User) InactiveMessage() string {
	if u.Banned {
		return "banned"
	}
	return "inactive"
}

// TrackSignIn rotates the trackable sign in columns.
func (u *User) TrackSignIn(at time.Time, ip string) {
	u.LastSignInAt = u.CurrentSignInAt
	if u.LastSignInAt == nil {
		u.LastSignInAt = &at
	}
	u.LastSignInIP = u.CurrentSignInIP
	if u.LastSignInIP == "" {
		u.LastSignInIP = ip
	}
	u.CurrentSignInAt = &at
	u.CurrentSignInIP = ip
	u.SignInCount++
}
