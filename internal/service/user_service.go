package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/infrastructure"
)

// UserService handles user-related business logic
type UserService struct {
	userRepo     domain.UserRepository
	gamification *GamificationService
	jwtConfig    *infrastructure.JWTConfig
	admins       *infrastructure.AdminConfig
	tracer       trace.Tracer
	logger       *zap.Logger
	now          func() time.Time
}

// NewUserService creates a new user service
func NewUserService(
	userRepo domain.UserRepository,
	gamification *GamificationService,
	jwtConfig *infrastructure.JWTConfig,
	admins *infrastructure.AdminConfig,
	tracer trace.Tracer,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		gamification: gamification,
		jwtConfig:    jwtConfig,
		admins:       admins,
		tracer:       tracer,
		logger:       logger,
		now:          time.Now,
	}
}

// Register creates a new user account
func (s *UserService) Register(ctx context.Context, req *domain.UserCreateRequest) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	span.SetAttributes(attribute.String("user.email", req.Email))

	// Check if user already exists
	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Error("Failed to check existing user", zap.Error(err))
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, domain.ErrUserAlreadyExists
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, nil, domain.ErrInternalServer
	}

	// Create user
	user := &domain.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		Role:         s.roleFor(req.Email),
		Level:        domain.LevelForXP(0),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, nil, err
	}

	// Generate tokens
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
	)

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, tokens, nil
}

// Login authenticates a user and returns tokens
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Login")
	defer span.End()

	span.SetAttributes(attribute.String("user.email", email))

	// Find user by email
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	// Accounts added to ADMIN_EMAILS after signup are promoted here
	if s.roleFor(user.Email) == domain.RoleAdmin && user.Role != domain.RoleAdmin {
		if err := s.userRepo.UpdateRole(ctx, user.ID, domain.RoleAdmin); err != nil {
			s.logger.Error("Failed to promote admin", zap.String("user_id", user.ID.String()), zap.Error(err))
			return nil, nil, err
		}
		s.logger.Info("User promoted to admin", zap.String("user_id", user.ID.String()))
	}

	// A successful login is the activity that drives the daily streak
	userID := user.ID
	user, err = s.gamification.RecomputeStreakOnLogin(ctx, userID, s.now())
	if err != nil {
		s.logger.Error("Failed to update streak on login", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, nil, err
	}

	// Generate tokens
	tokens, err := s.generateTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.Int("streak", user.Streak),
	)

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return user, tokens, nil
}

// RefreshToken trades a refresh token for a new pair. The role is read
// from the stored user so a promotion since the last login takes effect.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.RefreshToken")
	defer span.End()

	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	userID, err := claims.userID()
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(user)
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetUserByID")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", id.String()))
	return s.userRepo.FindByID(ctx, id)
}

// ValidateAccessToken resolves an access token to its user and role
func (s *UserService) ValidateAccessToken(tokenString string) (uuid.UUID, domain.Role, error) {
	claims, err := s.parseToken(tokenString, tokenTypeAccess)
	if err != nil {
		return uuid.Nil, "", err
	}
	userID, err := claims.userID()
	if err != nil {
		return uuid.Nil, "", err
	}
	if claims.Role == "" {
		return userID, domain.RoleUser, nil
	}
	return userID, claims.Role, nil
}

// roleFor picks the role granted to an email address
func (s *UserService) roleFor(email string) domain.Role {
	if s.admins.IsAdmin(email) {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}
