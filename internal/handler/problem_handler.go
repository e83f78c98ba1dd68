package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/middleware"
	"github.com/sheet-tracker/backend/internal/service"
)

// ProblemHandler handles catalog HTTP requests
type ProblemHandler struct {
	problemService *service.ProblemService
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(problemService *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{
		problemService: problemService,
	}
}

// GetProblems returns all problems
// GET /api/problems
func (h *ProblemHandler) GetProblems(c *gin.Context) {
	problems, err := h.problemService.GetAllProblems(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve problems")
		return
	}

	// Convert to response format
	responses := make([]domain.ProblemResponse, len(problems))
	for i, problem := range problems {
		responses[i] = problem.ToResponse()
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": responses,
		"count":    len(responses),
	})
}

// GetProblem returns a specific problem by ID
// GET /api/problems/:id
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	id, ok := parseID(c, "id", "problem")
	if !ok {
		return
	}

	problem, err := h.problemService.GetProblemByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve problem")
		return
	}

	c.JSON(http.StatusOK, problem.ToResponse())
}

// GetProblemStats returns statistics about the problem set
// GET /api/problems/stats
func (h *ProblemHandler) GetProblemStats(c *gin.Context) {
	stats, err := h.problemService.GetProblemStats(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve problem statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSheets lists the curated sheets
// GET /api/sheets
func (h *ProblemHandler) GetSheets(c *gin.Context) {
	sheets, err := h.problemService.GetSheets(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to retrieve sheets")
		return
	}

	responses := make([]domain.SheetResponse, len(sheets))
	for i := range sheets {
		responses[i] = sheets[i].ToResponse()
	}

	c.JSON(http.StatusOK, gin.H{
		"sheets": responses,
		"count":  len(responses),
	})
}

// GetSheet returns a sheet with its problems
// GET /api/sheets/:slug
func (h *ProblemHandler) GetSheet(c *gin.Context) {
	sheet, err := h.problemService.GetSheet(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Failed to retrieve sheet")
		return
	}

	c.JSON(http.StatusOK, sheet.ToResponse())
}

// GetDailyChallenge returns today's unsolved pick for the user
// GET /api/daily-challenge
func (h *ProblemHandler) GetDailyChallenge(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	problem, err := h.problemService.GetDailyChallenge(c.Request.Context(), userID, time.Now())
	if err != nil {
		respondError(c, err, "Failed to pick daily challenge")
		return
	}

	c.JSON(http.StatusOK, problem.ToResponse())
}
