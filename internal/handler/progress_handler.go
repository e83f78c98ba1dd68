package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/middleware"
	"github.com/sheet-tracker/backend/internal/service"
)

// ProgressHandler handles solve and progress-edit HTTP requests
type ProgressHandler struct {
	progressService *service.ProgressService
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progressService *service.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
	}
}

// RecordSolve marks a problem solved for the authenticated user
// POST /api/progress
func (h *ProgressHandler) RecordSolve(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.RecordSolveRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.progressService.RecordSolve(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err, "Failed to record solve")
		return
	}

	c.JSON(http.StatusOK, record.ToResponse())
}

// GetProgress lists the authenticated user's progress records
// GET /api/progress
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	records, err := h.progressService.ListUserProgress(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve progress")
		return
	}

	responses := make([]domain.ProgressResponse, len(records))
	for i := range records {
		responses[i] = records[i].ToResponse()
	}

	c.JSON(http.StatusOK, gin.H{
		"progress": responses,
		"count":    len(responses),
	})
}

// UpdateProgress edits notes, timing and the revision flag of a solved problem
// PATCH /api/progress/:id
func (h *ProgressHandler) UpdateProgress(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	progressID, ok := parseID(c, "id", "progress")
	if !ok {
		return
	}

	var patch domain.ProgressPatch
	if !bindJSON(c, &patch) {
		return
	}

	record, err := h.progressService.UpdateProgress(c.Request.Context(), progressID, userID, &patch)
	if err != nil {
		respondError(c, err, "Failed to update progress")
		return
	}

	c.JSON(http.StatusOK, record.ToResponse())
}
