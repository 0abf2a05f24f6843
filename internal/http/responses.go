package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"learnpath/internal/domain"
)

type UserResponse struct {
	ID              int64   `json:"id"`
	Email           string  `json:"email"`
	Username        string  `json:"username"`
	LearningGoal    string  `json:"learning_goal"`
	Admin           bool    `json:"admin"`
	Banned          bool    `json:"banned"`
	PathID          *int64  `json:"path_id"`
	AvatarURL       string  `json:"avatar_url,omitempty"`
	SignInCount     int     `json:"sign_in_count"`
	CurrentSignInAt *string `json:"current_sign_in_at,omitempty"`
	LastSignInAt    *string `json:"last_sign_in_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func (h *Handler) userResponse(c *gin.Context, user *domain.User) UserResponse {
	resp := UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Username:        user.Username,
		LearningGoal:    user.LearningGoal,
		Admin:           user.Admin,
		Banned:          user.Banned,
		PathID:          user.PathID,
		SignInCount:     user.SignInCount,
		CurrentSignInAt: formatTime(user.CurrentSignInAt),
		LastSignInAt:    formatTime(user.LastSignInAt),
		CreatedAt:       user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       user.UpdatedAt.Format(time.RFC3339),
	}
	if user.AvatarKey != "" {
		link, err := h.users.AvatarURL(c.Request.Context(), user)
		if err != nil {
			h.logger.WithField("user_id", user.ID).Warnf("presign avatar: %v", err)
		}
		resp.AvatarURL = link
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

type PathResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	DefaultPath bool   `json:"default_path"`
}

func pathToResponse(p domain.Path) PathResponse {
	return PathResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Position:    p.Position,
		DefaultPath: p.DefaultPath,
	}
}

type CourseResponse struct {
	ID          int64  `json:"id"`
	PathID      int64  `json:"path_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

func courseToResponse(c domain.Course) CourseResponse {
	return CourseResponse{
		ID:          c.ID,
		PathID:      c.PathID,
		Title:       c.Title,
		Description: c.Description,
		Position:    c.Position,
	}
}

type LessonResponse struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	IsProject   bool   `json:"is_project"`
}

func lessonToResponse(l domain.Lesson) LessonResponse {
	return LessonResponse{
		ID:          l.ID,
		CourseID:    l.CourseID,
		Title:       l.Title,
		Description: l.Description,
		Position:    l.Position,
		IsProject:   l.IsProject,
	}
}

func lessonsToResponse(lessons []domain.Lesson) []LessonResponse {
	resp := make([]LessonResponse, len(lessons))
	for i := range lessons {
		resp[i] = lessonToResponse(lessons[i])
	}
	return resp
}

type ProgressResponse struct {
	domain.CourseProgress
	Started   bool `json:"started"`
	Completed bool `json:"completed"`
}

func progressToResponse(p domain.CourseProgress) ProgressResponse {
	return ProgressResponse{
		CourseProgress: p,
		Started:        p.Started(),
		Completed:      p.Completed(),
	}
}

type SubmissionResponse struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	LessonID       int64  `json:"lesson_id"`
	RepoURL        string `json:"repo_url"`
	LivePreviewURL string `json:"live_preview_url"`
	IsPublic       bool   `json:"is_public"`
	Banned         bool   `json:"banned"`
	Likes          int    `json:"likes"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func submissionToResponse(s domain.ProjectSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		LessonID:       s.LessonID,
		RepoURL:        s.RepoURL,
		LivePreviewURL: s.LivePreviewURL,
		IsPublic:       s.IsPublic,
		Banned:         s.Banned,
		Likes:          s.Likes,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.Format(time.RFC3339),
	}
}

func submissionsToResponse(subs []domain.ProjectSubmission) []SubmissionResponse {
	resp := make([]SubmissionResponse, len(subs))
	for i := range subs {
		resp[i] = submissionToResponse(subs[i])
	}
	return resp
}

type FlagResponse struct {
	ID                  int64             `json:"id"`
	FlaggerID           int64             `json:"flagger_id"`
	ProjectSubmissionID *int64            `json:"project_submission_id"`
	Reason              domain.FlagReason `json:"reason"`
	Extra               string            `json:"extra"`
	Status              domain.FlagStatus `json:"status"`
	TakenAction         domain.FlagAction `json:"taken_action"`
	CreatedAt           string            `json:"created_at"`
}

func flagToResponse(f domain.Flag) FlagResponse {
	return FlagResponse{
		ID:                  f.ID,
		FlaggerID:           f.FlaggerID,
		ProjectSubmissionID: f.ProjectSubmissionID,
		Reason:              f.Reason,
		Extra:               f.Extra,
		Status:              f.Status,
		TakenAction:         f.TakenAction,
		CreatedAt:           f.CreatedAt.Format(time.RFC3339),
	}
}

func flagsToResponse(flags []domain.Flag) []FlagResponse {
	resp := make([]FlagResponse, len(flags))
	for i := range flags {
		resp[i] = flagToResponse(flags[i])
	}
	return resp
}
