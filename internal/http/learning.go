package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnpath/internal/domain"
	"learnpath/internal/service"
)

func (h *Handler) listPaths(c *gin.Context) {
	paths, err := h.catalog.ListPaths(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]PathResponse, len(paths))
	for i := range paths {
		resp[i] = pathToResponse(paths[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) defaultPath(c *gin.Context) {
	path, err := h.catalog.DefaultPath(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if path == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no default path"})
		return
	}
	c.JSON(http.StatusOK, pathToResponse(*path))
}

func (h *Handler) listCourses(c *gin.Context) {
	id, ok := parseID(c, "path")
	if !ok {
		return
	}
	courses, err := h.catalog.ListCourses(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]CourseResponse, len(courses))
	for i := range courses {
		resp[i] = courseToResponse(courses[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listLessons(c *gin.Context) {
	id, ok := parseID(c, "course")
	if !ok {
		return
	}
	lessons, err := h.catalog.ListLessons(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lessonsToResponse(lessons))
}

func (h *Handler) courseProgress(c *gin.Context) {
	id, ok := parseID(c, "course")
	if !ok {
		return
	}
	p, err := h.progress.ProgressFor(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progressToResponse(p))
}

// pathProgress reports progress for every course of a path through one tracker.
func (h *Handler) pathProgress(c *gin.Context) {
	id, ok := parseID(c, "path")
	if !ok {
		return
	}
	courses, err := h.catalog.ListCourses(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	tracker := h.progress.Tracker(currentUser(c).ID)
	resp := make([]ProgressResponse, 0, len(courses))
	for _, course := range courses {
		p, err := tracker.ProgressFor(c.Request.Context(), course.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp = append(resp, progressToResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) lessonCompleted(c *gin.Context) {
	id, ok := parseID(c, "lesson")
	if !ok {
		return
	}
	if _, err := h.catalog.GetLesson(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	done, err := h.progress.Completed(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lesson_id": id, "completed": done})
}

func (h *Handler) completeLesson(c *gin.Context) {
	id, ok := parseID(c, "lesson")
	if !ok {
		return
	}
	completion, err := h.progress.Complete(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lesson_id": completion.LessonID, "completed": true})
}

func (h *Handler) uncompleteLesson(c *gin.Context) {
	id, ok := parseID(c, "lesson")
	if !ok {
		return
	}
	if err := h.progress.Uncomplete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lesson_id": id, "completed": false})
}

type submissionRequest struct {
	LessonID       int64   `json:"lesson_id"`
	RepoURL        string  `json:"repo_url"`
	LivePreviewURL *string `json:"live_preview_url"`
	IsPublic       *bool   `json:"is_public"`
}

func (r submissionRequest) input() service.SubmissionInput {
	return service.SubmissionInput{
		LessonID:       r.LessonID,
		RepoURL:        r.RepoURL,
		LivePreviewURL: r.LivePreviewURL,
		IsPublic:       r.IsPublic,
	}
}

func (h *Handler) listLessonSubmissions(c *gin.Context) {
	id, ok := parseID(c, "lesson")
	if !ok {
		return
	}
	subs, err := h.submissions.ListForLesson(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submissionsToResponse(subs))
}

func (h *Handler) createSubmission(c *gin.Context) {
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.submissions.Create(c.Request.Context(), currentUser(c).ID, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, submissionToResponse(*sub))
}

func (h *Handler) updateSubmission(c *gin.Context) {
	id, ok := parseID(c, "submission")
	if !ok {
		return
	}
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.submissions.Update(c.Request.Context(), currentUser(c).ID, id, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submissionToResponse(*sub))
}

func (h *Handler) deleteSubmission(c *gin.Context) {
	id, ok := parseID(c, "submission")
	if !ok {
		return
	}
	if err := h.submissions.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) vote(c *gin.Context) {
	id, ok := parseID(c, "submission")
	if !ok {
		return
	}
	likes, err := h.submissions.Vote(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes, "voted": true})
}

func (h *Handler) unvote(c *gin.Context) {
	id, ok := parseID(c, "submission")
	if !ok {
		return
	}
	likes, err := h.submissions.Unvote(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes, "voted": false})
}

type flagRequest struct {
	Reason string `json:"reason" binding:"required"`
	Extra  string `json:"extra"`
}

type resolveFlagRequest struct {
	Action string `json:"action" binding:"required"`
}

func (h *Handler) createFlag(c *gin.Context) {
	id, ok := parseID(c, "submission")
	if !ok {
		return
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flag, err := h.flags.Create(c.Request.Context(), currentUser(c).ID, id, domain.FlagReason(req.Reason), req.Extra)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, flagToResponse(*flag))
}

func (h *Handler) listActiveFlags(c *gin.Context) {
	flags, err := h.flags.ListActive(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flagsToResponse(flags))
}

func (h *Handler) resolveFlag(c *gin.Context) {
	id, ok := parseID(c, "flag")
	if !ok {
		return
	}
	var req resolveFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flag, err := h.flags.Resolve(c.Request.Context(), id, domain.FlagAction(req.Action))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flagToResponse(*flag))
}
