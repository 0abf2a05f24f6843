package service

import "errors"

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBanned is returned when a banned user tries to sign in.
	ErrBanned = errors.New("banned")
	// ErrEmailTaken is returned when registering or updating to an email already in use.
	ErrEmailTaken = errors.New("email has already been taken")
	// ErrInvalidResetToken covers unknown and expired password reset tokens.
	ErrInvalidResetToken = errors.New("reset password token is invalid")
	// ErrStorageDisabled is returned by avatar operations when no object storage is configured.
	ErrStorageDisabled = errors.New("object storage not configured")
	// ErrUnsupportedMedia rejects avatar uploads that are not images.
	ErrUnsupportedMedia = errors.New("unsupported avatar content type")
	// ErrForbidden is returned when acting on a record owned by someone else.
	ErrForbidden = errors.New("forbidden")
	// ErrOwnSubmission is returned when voting for or flagging one's own submission.
	ErrOwnSubmission = errors.New("cannot act on your own submission")
	// ErrFlagResolved is returned when resolving a flag twice.
	ErrFlagResolved = errors.New("flag already resolved")
	// ErrInvalidAction is returned for unknown flag resolutions.
	ErrInvalidAction = errors.New("invalid flag action")
	// ErrUnknownProvider is returned for OAuth providers that are not configured.
	ErrUnknownProvider = errors.New("unknown oauth provider")
	// ErrInvalidState is returned when an OAuth callback carries an unknown or expired state.
	ErrInvalidState = errors.New("invalid oauth state")
)
