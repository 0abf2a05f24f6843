package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
	"learnpath/internal/service"
)

const currentUserKey = "currentUser"

// requireUser authenticates the bearer token and reloads the user so bans apply immediately.
func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := h.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		user, err := h.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
				return
			}
			h.fail(c, err)
			c.Abort()
			return
		}
		if !user.ActiveForAuthentication() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": user.InactiveMessage()})
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(currentUserKey).(*domain.User)
}

type registerRequest struct {
	Email        string `json:"email" binding:"required"`
	Username     string `json:"username"`
	Password     string `json:"password" binding:"required"`
	LearningGoal string `json:"learning_goal"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Email:        req.Email,
		Username:     req.Username,
		Password:     req.Password,
		LearningGoal: req.LearningGoal,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondSession(c, http.StatusCreated, user, false)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), service.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
		IP:       c.ClientIP(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, user, req.Remember)
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !user.ActiveForAuthentication() {
		c.JSON(http.StatusForbidden, gin.H{"error": user.InactiveMessage()})
		return
	}
	h.respondSession(c, http.StatusOK, user, false)
}

func (h *Handler) oauthRedirect(c *gin.Context) {
	if h.oauth == nil {
		h.fail(c, service.ErrUnknownProvider)
		return
	}
	target, err := h.oauth.AuthCodeURL(c.Request.Context(), c.Param("provider"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) oauthCallback(c *gin.Context) {
	if h.oauth == nil {
		h.fail(c, service.ErrUnknownProvider)
		return
	}
	if msg := c.Query("error"); msg != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}
	user, err := h.oauth.Callback(c.Request.Context(), c.Param("provider"), c.Query("state"), c.Query("code"), c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondSession(c, http.StatusOK, user, false)
}

func (h *Handler) respondSession(c *gin.Context, status int, user *domain.User, remember bool) {
	token, expires, err := h.tokens.Issue(user.ID, remember)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, SessionResponse{
		Token:     token,
		ExpiresAt: expires.Format(time.RFC3339),
		User:      h.userResponse(c, user),
	})
}
