package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role controls access to the admin console
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered user of the platform together with the
// gamification state mutated by solve and login events
type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email          string     `json:"email" gorm:"uniqueIndex;not null"`
	Username       string     `json:"username" gorm:"not null"`
	PasswordHash   string     `json:"-" gorm:"not null"`
	Role           Role       `json:"role" gorm:"type:varchar(10);not null;default:'user'"`
	XPPoints       int        `json:"xp_points" gorm:"not null;default:0"`
	Level          int        `json:"level" gorm:"not null;default:1"`
	Streak         int        `json:"streak" gorm:"not null;default:0"`
	LastActiveDate *time.Time `json:"last_active_date"`
	Version        int        `json:"-" gorm:"not null;default:0"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// UserRepository defines the interface for user data access
// This abstraction allows for easy testing and swapping implementations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// UpdateGameState persists xp, level, streak and last active date if the
	// stored version still matches user.Version, then bumps user.Version.
	UpdateGameState(ctx context.Context, user *User) error
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
}

// UserCreateRequest represents the data needed to create a new user
type UserCreateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8"`
}

// UserResponse represents the public user data returned by the API
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	XPPoints  int       `json:"xp_points"`
	Level     int       `json:"level"`
	Streak    int       `json:"streak"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse converts a User to a UserResponse (hides sensitive data)
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		XPPoints:  u.XPPoints,
		Level:     u.Level,
		Streak:    u.Streak,
		CreatedAt: u.CreatedAt,
	}
}

// UserProgress represents the user's overall progress statistics
type UserProgress struct {
	TotalSolved       int                   `json:"total_solved"`
	EasySolved        int                   `json:"easy_solved"`
	MediumSolved      int                   `json:"medium_solved"`
	HardSolved        int                   `json:"hard_solved"`
	MarkedForRevision int                   `json:"marked_for_revision"`
	TotalRevisions    int                   `json:"total_revisions"`
	TopicProgress     map[string]TopicStats `json:"topic_progress"`
}

// TopicStats represents progress within a specific topic
type TopicStats struct {
	Total  int `json:"total"`
	Solved int `json:"solved"`
}
