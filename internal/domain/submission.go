package domain

import "time"

// ProjectSubmission links a user's solution to a project lesson.
type ProjectSubmission struct {
	ID             int64
	UserID         int64
	LessonID       int64
	RepoURL        string `validate:"required,http_url"`
	LivePreviewURL string `validate:"omitempty,http_url"`
	IsPublic       bool
	Banned         bool
	Likes          int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the submission URLs.
func (s *ProjectSubmission) Validate() error {
	return validateStruct(s)
}

// VotableProjectSubmission is the votable type recorded for submission votes.
const VotableProjectSubmission = "project_submission"

// Vote is a like cast by a voter on a votable record.
type Vote struct {
	ID          int64
	VoterID     int64
	VotableType string
	VotableID   int64
	CreatedAt   time.Time
}

// UserProvider links a user to an OAuth identity.
type UserProvider struct {
	ID        int64
	UserID    int64
	Provider  string
	UID       string
	CreatedAt time.Time
}
