package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sheet-tracker/backend/internal/domain"
)

const (
	// AuthorizationHeader is the header key for the JWT token
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for the JWT token
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for the user ID
	UserIDKey = "userID"
	// RoleKey is the context key for the user's role
	RoleKey = "role"
)

// TokenValidator resolves an access token to its user
type TokenValidator interface {
	ValidateAccessToken(token string) (uuid.UUID, domain.Role, error)
}

// AuthMiddleware resolves the bearer token to a user and stores the user
// ID and role on the context. The scheme is matched case-insensitively.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c.GetHeader(AuthorizationHeader))
		if problem != "" {
			abortWith(c, http.StatusUnauthorized, problem)
			return
		}

		userID, role, err := validator.ValidateAccessToken(token)
		if err != nil {
			_ = c.Error(err)
			abortWith(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(RoleKey, role)
		c.Next()
	}
}

// bearerToken splits the Authorization header, returning the message to
// answer with when it is unusable
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Authorization header is required"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme+" ", BearerPrefix) {
		return "", "Invalid authorization header format"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "Token is required"
	}
	return token, ""
}

func abortWith(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// RequireAdmin rejects callers whose token does not carry the admin role.
// It must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := RequireUser(c); !ok {
			return
		}
		if role, _ := c.Get(RoleKey); role != domain.RoleAdmin {
			abortWith(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// GetUserID extracts the user ID from the gin context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

// RequireUser returns the authenticated user's ID, aborting with 401 when
// the route was reached without AuthMiddleware
func RequireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		abortWith(c, http.StatusUnauthorized, "Authentication required")
	}
	return userID, ok
}
