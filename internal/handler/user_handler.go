package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheet-tracker/backend/internal/middleware"
	"github.com/sheet-tracker/backend/internal/service"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService         *service.UserService
	progressService     *service.ProgressService
	gamificationService *service.GamificationService
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	userService *service.UserService,
	progressService *service.ProgressService,
	gamificationService *service.GamificationService,
) *UserHandler {
	return &UserHandler{
		userService:         userService,
		progressService:     progressService,
		gamificationService: gamificationService,
	}
}

// GetCurrentUser returns the currently authenticated user
// GET /api/users/me
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// GetUserProgress returns the user's progress statistics
// GET /api/users/me/progress
func (h *UserHandler) GetUserProgress(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	progress, err := h.progressService.GetUserProgress(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve progress")
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetGameState returns xp, level and streak
// GET /api/users/me/game
func (h *UserHandler) GetGameState(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	state, err := h.gamificationService.GetGameState(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve game state")
		return
	}

	c.JSON(http.StatusOK, state)
}
