package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
)

// AdminService hosts destructive maintenance actions. Callers must gate it
// behind an admin check.
type AdminService struct {
	store        domain.Store
	gamification *GamificationService
	revisions    *RevisionService
	retries      int
	tracer       trace.Tracer
	logger       *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	store domain.Store,
	gamification *GamificationService,
	revisions *RevisionService,
	retries int,
	tracer trace.Tracer,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		store:        store,
		gamification: gamification,
		revisions:    revisions,
		retries:      retries,
		tracer:       tracer,
		logger:       logger,
	}
}

// ResetProgress deletes every progress record and revision task of the user
// and zeroes their XP, level and streak
func (s *AdminService) ResetProgress(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AdminService.ResetProgress")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	var user *domain.User
	err := atomically(ctx, s.store, s.retries, s.logger, "reset_progress", func(tx domain.Store) error {
		if err := tx.Revisions().DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		if err := tx.Progress().DeleteByUserID(ctx, userID); err != nil {
			return err
		}
		var err error
		user, err = s.gamification.resetGameState(ctx, tx, userID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to reset progress", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}

	s.revisions.InvalidateStats(ctx, userID)
	s.logger.Warn("User progress reset",
		zap.String("user_id", userID.String()),
	)
	return user, nil
}
