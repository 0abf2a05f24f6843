package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnpath/internal/service"
)

type updateMeRequest struct {
	Email        *string `json:"email"`
	Username     *string `json:"username"`
	LearningGoal *string `json:"learning_goal"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	Password        string `json:"password" binding:"required"`
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, h.userResponse(c, currentUser(c)))
}

func (h *Handler) updateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c).ID, service.ProfileUpdate{
		Email:        req.Email,
		Username:     req.Username,
		LearningGoal: req.LearningGoal,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.userResponse(c, user))
}

func (h *Handler) deleteMe(c *gin.Context) {
	user := currentUser(c)
	if err := h.users.Delete(c.Request.Context(), user.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": user.ID})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), currentUser(c).ID, req.CurrentPassword, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAvatarBytes+1<<10)
	header, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if header.Size > h.maxAvatarBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar is too large"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	user, err := h.users.SetAvatar(c.Request.Context(), currentUser(c).ID, file)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.userResponse(c, user))
}

func (h *Handler) latestLesson(c *gin.Context) {
	lesson, err := h.progress.LatestCompletedLesson(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if lesson == nil {
		c.JSON(http.StatusOK, gin.H{"lesson": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lesson": lessonToResponse(*lesson)})
}

func (h *Handler) completedLessons(c *gin.Context) {
	lessons, err := h.progress.CompletedLessons(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lessonsToResponse(lessons))
}

func (h *Handler) mySubmissions(c *gin.Context) {
	subs, err := h.submissions.ListByUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submissionsToResponse(subs))
}

func (h *Handler) dismissedFlags(c *gin.Context) {
	flags, err := h.flags.DismissedFlags(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flagsToResponse(flags))
}

func (h *Handler) banUser(c *gin.Context) {
	h.setBanned(c, true)
}

func (h *Handler) unbanUser(c *gin.Context) {
	h.setBanned(c, false)
}

func (h *Handler) setBanned(c *gin.Context, banned bool) {
	id, ok := parseID(c, "user")
	if !ok {
		return
	}
	user, err := h.users.SetBanned(c.Request.Context(), id, banned)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.userResponse(c, user))
}
