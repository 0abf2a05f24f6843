package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"learnpath/internal/auth"
	"learnpath/internal/domain"
	"learnpath/internal/repository"
	"learnpath/internal/service"
)

const defaultMaxAvatarBytes = 2 << 20

// Deps groups the services the HTTP layer talks to.
type Deps struct {
	Users       service.UserService
	OAuth       service.OAuthService
	Progress    service.ProgressService
	Submissions service.SubmissionService
	Flags       service.FlagService
	Catalog     service.CatalogService
	Tokens      *auth.Tokens
	Logger      *logrus.Logger

	MaxAvatarBytes int64
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users       service.UserService
	oauth       service.OAuthService
	progress    service.ProgressService
	submissions service.SubmissionService
	flags       service.FlagService
	catalog     service.CatalogService
	tokens      *auth.Tokens
	logger      *logrus.Logger

	maxAvatarBytes int64
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.MaxAvatarBytes <= 0 {
		deps.MaxAvatarBytes = defaultMaxAvatarBytes
	}
	return &Handler{
		users:          deps.Users,
		oauth:          deps.OAuth,
		progress:       deps.Progress,
		submissions:    deps.Submissions,
		flags:          deps.Flags,
		catalog:        deps.Catalog,
		tokens:         deps.Tokens,
		logger:         deps.Logger,
		maxAvatarBytes: deps.MaxAvatarBytes,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
		api.POST("/auth/password/forgot", h.forgotPassword)
		api.POST("/auth/password/reset", h.resetPassword)
		api.GET("/auth/:provider", h.oauthRedirect)
		api.GET("/auth/:provider/callback", h.oauthCallback)

		api.GET("/paths", h.listPaths)
		api.GET("/paths/default", h.defaultPath)
		api.GET("/paths/:id/courses", h.listCourses)
		api.GET("/courses/:id/lessons", h.listLessons)
		api.GET("/lessons/:id/submissions", h.listLessonSubmissions)
	}

	authed := api.Group("", h.requireUser())
	{
		authed.GET("/me", h.me)
		authed.PATCH("/me", h.updateMe)
		authed.DELETE("/me", h.deleteMe)
		authed.PUT("/me/password", h.changePassword)
		authed.PUT("/me/avatar", h.uploadAvatar)
		authed.GET("/me/latest-lesson", h.latestLesson)
		authed.GET("/me/completed-lessons", h.completedLessons)
		authed.GET("/me/submissions", h.mySubmissions)
		authed.GET("/me/flags/dismissed", h.dismissedFlags)

		authed.GET("/paths/:id/progress", h.pathProgress)
		authed.GET("/courses/:id/progress", h.courseProgress)
		authed.GET("/lessons/:id/completion", h.lessonCompleted)
		authed.POST("/lessons/:id/completion", h.completeLesson)
		authed.DELETE("/lessons/:id/completion", h.uncompleteLesson)

		authed.POST("/submissions", h.createSubmission)
		authed.PATCH("/submissions/:id", h.updateSubmission)
		authed.DELETE("/submissions/:id", h.deleteSubmission)
		authed.POST("/submissions/:id/vote", h.vote)
		authed.DELETE("/submissions/:id/vote", h.unvote)
		authed.POST("/submissions/:id/flags", h.createFlag)
	}

	admin := api.Group("/admin", h.requireUser(), requireAdmin())
	{
		admin.PUT("/users/:id/ban", h.banUser)
		admin.DELETE("/users/:id/ban", h.unbanUser)
		admin.GET("/flags", h.listActiveFlags)
		admin.POST("/flags/:id/resolve", h.resolveFlag)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return 0, false
	}
	return id, true
}

// fail maps service and repository errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error) {
	if verr, ok := domain.AsValidationErrors(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr})
		return
	}

	switch {
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation failed",
			"fields": domain.ValidationErrors{"email": {"has already been taken"}},
		})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrUnknownProvider):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "banned"})
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrOwnSubmission):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidResetToken),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrFlagResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStorageDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
