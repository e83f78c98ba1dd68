package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/middleware"
	"github.com/sheet-tracker/backend/internal/service"
)

// RevisionHandler handles spaced-repetition HTTP requests
type RevisionHandler struct {
	revisionService *service.RevisionService
	now             func() time.Time
}

// NewRevisionHandler creates a new revision handler
func NewRevisionHandler(revisionService *service.RevisionService) *RevisionHandler {
	return &RevisionHandler{
		revisionService: revisionService,
		now:             time.Now,
	}
}

func revisionResponses(tasks []domain.RevisionTask) []domain.RevisionResponse {
	responses := make([]domain.RevisionResponse, len(tasks))
	for i := range tasks {
		responses[i] = tasks[i].ToResponse()
	}
	return responses
}

// GetRevisions lists the user's revision tasks
// GET /api/revisions?status=all|pending|completed|overdue
func (h *RevisionHandler) GetRevisions(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	status, err := domain.ParseRevisionStatus(c.Query("status"))
	if err != nil {
		respondError(c, err, "Invalid status filter")
		return
	}

	tasks, err := h.revisionService.ListBySchedule(c.Request.Context(), userID, status, h.now())
	if err != nil {
		respondError(c, err, "Failed to retrieve revisions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"revisions": revisionResponses(tasks),
		"count":     len(tasks),
	})
}

// GetOverdue lists pending revisions scheduled before today
// GET /api/revisions/overdue
func (h *RevisionHandler) GetOverdue(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	tasks, err := h.revisionService.ListOverdue(c.Request.Context(), userID, h.now())
	if err != nil {
		respondError(c, err, "Failed to retrieve overdue revisions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"revisions": revisionResponses(tasks),
		"count":     len(tasks),
	})
}

// GetStats returns the revision dashboard
// GET /api/revisions/stats
func (h *RevisionHandler) GetStats(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	stats, err := h.revisionService.ComputeStats(c.Request.Context(), userID, h.now())
	if err != nil {
		respondError(c, err, "Failed to compute revision stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CompleteRevision marks a revision task done
// POST /api/revisions/:id/complete
func (h *RevisionHandler) CompleteRevision(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	taskID, ok := parseID(c, "id", "revision")
	if !ok {
		return
	}

	result, err := h.revisionService.CompleteRevision(c.Request.Context(), taskID, userID)
	if err != nil {
		respondError(c, err, "Failed to complete revision")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"revision": result.Revision.ToResponse(),
		"progress": result.Progress.ToResponse(),
	})
}

// DeleteRevision stops revising the task's problem
// DELETE /api/revisions/:id
func (h *RevisionHandler) DeleteRevision(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	taskID, ok := parseID(c, "id", "revision")
	if !ok {
		return
	}

	if err := h.revisionService.DeleteRevision(c.Request.Context(), taskID, userID); err != nil {
		respondError(c, err, "Failed to delete revision")
		return
	}

	c.Status(http.StatusNoContent)
}
