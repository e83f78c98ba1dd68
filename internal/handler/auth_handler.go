package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/service"
)

// AuthHandler serves signup, login and token refresh
type AuthHandler struct {
	userService *service.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse is returned by signup and login. The user carries the game
// state after the login streak update.
type AuthResponse struct {
	User   domain.UserResponse `json:"user"`
	Tokens *service.TokenPair  `json:"tokens"`
}

// Register handles user registration
// POST /api/auth/signup
func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.UserCreateRequest
	if !bindJSON(c, &req) {
		return
	}
	user, tokens, err := h.userService.Register(c.Request.Context(), &req)
	h.respond(c, http.StatusCreated, user, tokens, err, "Failed to create user")
}

// Login checks credentials and advances the daily streak
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	user, tokens, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	h.respond(c, http.StatusOK, user, tokens, err, "Failed to login")
}

// Refresh trades a refresh token for a new pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	tokens, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		unauthorized(c, err, "Invalid or expired refresh token")
	case err != nil:
		respondError(c, err, "Failed to refresh token")
	default:
		c.JSON(http.StatusOK, gin.H{"tokens": tokens})
	}
}

func (h *AuthHandler) respond(c *gin.Context, status int, user *domain.User, tokens *service.TokenPair, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		unauthorized(c, err, "Invalid email or password")
	case err != nil:
		respondError(c, err, fallback)
	default:
		c.JSON(status, AuthResponse{User: user.ToResponse(), Tokens: tokens})
	}
}

func unauthorized(c *gin.Context, err error, message string) {
	_ = c.Error(err)
	c.JSON(http.StatusUnauthorized, gin.H{"error": message})
}
