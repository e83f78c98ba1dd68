package service

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
)

// ProblemService handles catalog reads: problems, sheets and the daily challenge
type ProblemService struct {
	problemRepo domain.ProblemRepository
	sheetRepo   domain.SheetRepository
	location    *time.Location
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewProblemService creates a new problem service
func NewProblemService(
	problemRepo domain.ProblemRepository,
	sheetRepo domain.SheetRepository,
	location *time.Location,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ProblemService {
	if location == nil {
		location = time.UTC
	}
	return &ProblemService{
		problemRepo: problemRepo,
		sheetRepo:   sheetRepo,
		location:    location,
		tracer:      tracer,
		logger:      logger,
	}
}

// GetAllProblems returns all problems
func (s *ProblemService) GetAllProblems(ctx context.Context) ([]domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetAllProblems")
	defer span.End()

	return s.problemRepo.FindAll(ctx)
}

// GetProblemByID returns a specific problem
func (s *ProblemService) GetProblemByID(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetProblemByID")
	defer span.End()

	span.SetAttributes(attribute.String("problem.id", id.String()))
	return s.problemRepo.FindByID(ctx, id)
}

// GetProblemStats returns statistics about the problem set
func (s *ProblemService) GetProblemStats(ctx context.Context) (*domain.ProblemStats, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetProblemStats")
	defer span.End()

	problems, err := s.problemRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.ProblemStats{
		Total:        len(problems),
		ByDifficulty: make(map[domain.Difficulty]int),
		ByTopic:      make(map[string]int),
		ByPlatform:   make(map[string]int),
	}

	for _, p := range problems {
		stats.ByDifficulty[p.Difficulty]++
		stats.ByPlatform[p.Platform]++
		for _, topic := range p.Topics {
			stats.ByTopic[topic]++
		}
	}

	return stats, nil
}

// GetSheets lists the curated sheets without their problems
func (s *ProblemService) GetSheets(ctx context.Context) ([]domain.Sheet, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetSheets")
	defer span.End()

	return s.sheetRepo.FindAll(ctx)
}

// GetSheet returns one sheet with its problems in sheet order
func (s *ProblemService) GetSheet(ctx context.Context, slug string) (*domain.Sheet, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetSheet")
	defer span.End()

	span.SetAttributes(attribute.String("sheet.slug", slug))
	return s.sheetRepo.FindBySlugWithProblems(ctx, slug)
}

// GetDailyChallenge picks one unsolved problem for the user. The pick is
// stable for a given user and calendar day.
func (s *ProblemService) GetDailyChallenge(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetDailyChallenge")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	candidates, err := s.problemRepo.FindUnsolvedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoUnsolvedProblem
	}

	day := domain.StartOfDay(now, s.location).Format(time.DateOnly)
	rng := rand.New(rand.NewSource(dailySeed(userID, day)))
	pick := candidates[rng.Intn(len(candidates))]

	s.logger.Debug("Daily challenge selected",
		zap.String("user_id", userID.String()),
		zap.String("day", day),
		zap.String("problem_id", pick.ID.String()),
	)

	span.SetAttributes(attribute.String("problem.id", pick.ID.String()))
	return &pick, nil
}

func dailySeed(userID uuid.UUID, day string) int64 {
	h := fnv.New64a()
	h.Write(userID[:])
	h.Write([]byte(day))
	return int64(h.Sum64())
}
