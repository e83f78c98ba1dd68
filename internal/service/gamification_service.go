package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/infrastructure"
)

// GamificationService owns the XP, level and streak state of users
type GamificationService struct {
	store    domain.Store
	config   *infrastructure.GamificationConfig
	location *time.Location
	retries  int
	metrics  *infrastructure.TelemetryMetrics
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewGamificationService creates a new gamification service
func NewGamificationService(
	store domain.Store,
	config *infrastructure.GamificationConfig,
	revisionConfig *infrastructure.RevisionConfig,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *GamificationService {
	return &GamificationService{
		store:    store,
		config:   config,
		location: revisionConfig.Location(),
		retries:  revisionConfig.ConflictRetries,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
	}
}

// AwardSolveXP adds the per-solve XP to the user and recomputes the level
func (s *GamificationService) AwardSolveXP(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "GamificationService.AwardSolveXP")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	var user *domain.User
	err := atomically(ctx, s.store, s.retries, s.logger, "award_xp", func(tx domain.Store) error {
		var err error
		user, err = s.awardXP(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordXP(ctx, s.config.XPPerSolve)
	return user, nil
}

// awardXP applies the award inside an existing unit of work
func (s *GamificationService) awardXP(ctx context.Context, tx domain.Store, userID uuid.UUID) (*domain.User, error) {
	user, err := tx.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.XPPoints += s.config.XPPerSolve
	user.Level = domain.LevelForXP(user.XPPoints)

	if err := tx.Users().UpdateGameState(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *GamificationService) recordXP(ctx context.Context, xp int) {
	if s.metrics != nil {
		s.metrics.XPAwarded.Add(ctx, int64(xp))
	}
}

// RecomputeStreakOnLogin advances the daily streak for a login at now and
// stamps now as the last active date
func (s *GamificationService) RecomputeStreakOnLogin(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "GamificationService.RecomputeStreakOnLogin")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	var user *domain.User
	var previous int
	err := atomically(ctx, s.store, s.retries, s.logger, "recompute_streak", func(tx domain.Store) error {
		u, err := tx.Users().FindByID(ctx, userID)
		if err != nil {
			return err
		}
		previous = u.Streak
		u.Streak = domain.NextStreak(u.Streak, u.LastActiveDate, now, s.location)
		at := now
		u.LastActiveDate = &at
		if err := tx.Users().UpdateGameState(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	if user.Streak != previous {
		s.logger.Info("Streak updated",
			zap.String("user_id", userID.String()),
			zap.Int("previous", previous),
			zap.Int("streak", user.Streak),
		)
	}

	span.SetAttributes(attribute.Int("user.streak", user.Streak))
	return user, nil
}

// GetGameState returns the user's XP, level and streak
func (s *GamificationService) GetGameState(ctx context.Context, userID uuid.UUID) (*domain.GameState, error) {
	ctx, span := s.tracer.Start(ctx, "GamificationService.GetGameState")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	state := domain.GameStateOf(user)
	return &state, nil
}

// resetGameState zeroes the user's gamification fields inside tx
func (s *GamificationService) resetGameState(ctx context.Context, tx domain.Store, userID uuid.UUID) (*domain.User, error) {
	user, err := tx.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.XPPoints = 0
	user.Level = domain.LevelForXP(0)
	user.Streak = 0
	user.LastActiveDate = nil
	if err := tx.Users().UpdateGameState(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
