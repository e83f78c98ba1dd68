package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/infrastructure"
)

// ProgressService owns the per-user, per-problem progress ledger
type ProgressService struct {
	store        domain.Store
	revisions    *RevisionService
	gamification *GamificationService
	config       *infrastructure.RevisionConfig
	xpConfig     *infrastructure.GamificationConfig
	metrics      *infrastructure.TelemetryMetrics
	tracer       trace.Tracer
	logger       *zap.Logger
	now          func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(
	store domain.Store,
	revisions *RevisionService,
	gamification *GamificationService,
	config *infrastructure.RevisionConfig,
	xpConfig *infrastructure.GamificationConfig,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ProgressService {
	return &ProgressService{
		store:        store,
		revisions:    revisions,
		gamification: gamification,
		config:       config,
		xpConfig:     xpConfig,
		metrics:      metrics,
		tracer:       tracer,
		logger:       logger,
		now:          time.Now,
	}
}

// RecordSolve marks a problem solved for the user. The ledger upsert, the
// revision batch and the XP award commit together or not at all.
func (s *ProgressService) RecordSolve(ctx context.Context, userID uuid.UUID, req *domain.RecordSolveRequest) (*domain.ProgressRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ProgressService.RecordSolve")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("problem.id", req.ProblemID.String()),
	)

	if req.ProblemID == uuid.Nil {
		return nil, domain.ErrMissingProblemID
	}
	patch := req.Patch()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.Problems().FindByID(ctx, req.ProblemID); err != nil {
		return nil, err
	}

	var (
		record     *domain.ProgressRecord
		scheduled  int
		firstSolve bool
		awarded    bool
	)
	err := atomically(ctx, s.store, s.config.ConflictRetries, s.logger, "record_solve", func(tx domain.Store) error {
		scheduled, awarded = 0, false

		existing, err := tx.Progress().FindByUserAndProblem(ctx, userID, req.ProblemID)
		if err != nil {
			return err
		}

		now := s.now()
		firstSolve = existing == nil || !existing.Solved

		r := existing
		if r == nil {
			r = &domain.ProgressRecord{UserID: userID, ProblemID: req.ProblemID}
		}
		patch.Apply(r)
		r.Solved = true
		r.SolvedAt = &now

		// Intervals only matter once the record is on a revision track;
		// ScheduleRevisions rejects a bad plan and the whole solve rolls back.
		if r.MarkedForRevision {
			intervals := req.RevisionDays
			if intervals == nil {
				intervals = s.config.DefaultIntervalDays
			}
			tasks, err := s.revisions.ScheduleRevisions(ctx, tx, userID, req.ProblemID, intervals, now)
			if err != nil {
				return err
			}
			next := now.AddDate(0, 0, lo.Min(intervals))
			r.NextRevisionDate = &next
			scheduled = len(tasks)
		}

		if existing == nil {
			err = tx.Progress().Create(ctx, r)
		} else {
			err = tx.Progress().Update(ctx, r)
		}
		if err != nil {
			return err
		}

		if firstSolve || s.xpConfig.AwardXPOnResolve {
			if _, err := s.gamification.awardXP(ctx, tx, userID); err != nil {
				return err
			}
			awarded = true
		}

		record = r
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record solve",
			zap.String("user_id", userID.String()),
			zap.String("problem_id", req.ProblemID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.revisions.InvalidateStats(ctx, userID)
	if s.metrics != nil {
		if firstSolve {
			s.metrics.ProblemsSolved.Add(ctx, 1)
		}
		if scheduled > 0 {
			s.metrics.RevisionsScheduled.Add(ctx, int64(scheduled))
		}
	}
	if awarded {
		s.gamification.recordXP(ctx, s.xpConfig.XPPerSolve)
	}

	s.logger.Info("Solve recorded",
		zap.String("user_id", userID.String()),
		zap.String("problem_id", req.ProblemID.String()),
		zap.Bool("first_solve", firstSolve),
		zap.Int("revisions_scheduled", scheduled),
		zap.Bool("xp_awarded", awarded),
	)

	span.SetAttributes(
		attribute.Bool("progress.first_solve", firstSolve),
		attribute.Int("revision.scheduled", scheduled),
	)
	return record, nil
}

// UpdateProgress edits the metadata of an owned record. It never schedules
// revisions or awards XP.
func (s *ProgressService) UpdateProgress(ctx context.Context, progressID, userID uuid.UUID, patch *domain.ProgressPatch) (*domain.ProgressRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ProgressService.UpdateProgress")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("progress.id", progressID.String()),
	)

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var record *domain.ProgressRecord
	err := atomically(ctx, s.store, s.config.ConflictRetries, s.logger, "update_progress", func(tx domain.Store) error {
		r, err := tx.Progress().FindByID(ctx, progressID)
		if err != nil {
			return err
		}
		if r.UserID != userID {
			return domain.ErrProgressNotFound
		}
		patch.Apply(r)
		if err := tx.Progress().Update(ctx, r); err != nil {
			return err
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if patch.MarkedForRevision != nil {
		s.revisions.InvalidateStats(ctx, userID)
	}
	return record, nil
}

// ListUserProgress returns the user's progress records, most recently solved first
func (s *ProgressService) ListUserProgress(ctx context.Context, userID uuid.UUID) ([]domain.ProgressRecord, error) {
	ctx, span := s.tracer.Start(ctx, "ProgressService.ListUserProgress")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))
	return s.store.Progress().FindByUserID(ctx, userID)
}

// GetUserProgress aggregates the user's solve statistics
func (s *ProgressService) GetUserProgress(ctx context.Context, userID uuid.UUID) (*domain.UserProgress, error) {
	ctx, span := s.tracer.Start(ctx, "ProgressService.GetUserProgress")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	counts := make([]int64, len(domain.Difficulties))
	var records []domain.ProgressRecord
	var problems []domain.Problem

	// Fan-out: one count per difficulty plus the ledger and catalog reads
	g, gctx := errgroup.WithContext(ctx)
	for i, diff := range domain.Difficulties {
		g.Go(func() error {
			count, err := s.store.Progress().CountSolvedByDifficulty(gctx, userID, diff)
			if err != nil {
				return err
			}
			counts[i] = count
			return nil
		})
	}
	g.Go(func() error {
		var err error
		records, err = s.store.Progress().FindByUserID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		problems, err = s.store.Problems().FindAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to aggregate user progress",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	progress := &domain.UserProgress{
		EasySolved:    int(counts[0]),
		MediumSolved:  int(counts[1]),
		HardSolved:    int(counts[2]),
		TopicProgress: make(map[string]domain.TopicStats),
	}
	progress.TotalSolved = progress.EasySolved + progress.MediumSolved + progress.HardSolved

	solved := make(map[uuid.UUID]bool, len(records))
	for _, r := range records {
		if r.Solved {
			solved[r.ProblemID] = true
		}
		if r.MarkedForRevision {
			progress.MarkedForRevision++
		}
		progress.TotalRevisions += r.RevisionCount
	}

	for _, p := range problems {
		for _, topic := range p.Topics {
			stats := progress.TopicProgress[topic]
			stats.Total++
			if solved[p.ID] {
				stats.Solved++
			}
			progress.TopicProgress[topic] = stats
		}
	}

	return progress, nil
}
