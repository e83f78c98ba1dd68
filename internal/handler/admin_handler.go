package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheet-tracker/backend/internal/service"
)

// AdminHandler handles admin console HTTP requests.
// Routes must sit behind middleware.RequireAdmin.
type AdminHandler struct {
	adminService *service.AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// ResetProgress wipes a user's progress and gamification state
// POST /api/admin/users/:id/reset-progress
func (h *AdminHandler) ResetProgress(c *gin.Context) {
	userID, ok := parseID(c, "id", "user")
	if !ok {
		return
	}

	user, err := h.adminService.ResetProgress(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to reset progress")
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
