package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/infrastructure"
)

const weakTopicLimit = 3

// RevisionService schedules, lists and completes spaced-repetition tasks
type RevisionService struct {
	store    domain.Store
	cache    domain.RevisionStatsCache
	config   *infrastructure.RevisionConfig
	location *time.Location
	metrics  *infrastructure.TelemetryMetrics
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// NewRevisionService creates a new revision service
func NewRevisionService(
	store domain.Store,
	cache domain.RevisionStatsCache,
	config *infrastructure.RevisionConfig,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *RevisionService {
	if cache == nil {
		cache = infrastructure.NoopStatsCache{}
	}
	return &RevisionService{
		store:    store,
		cache:    cache,
		config:   config,
		location: config.Location(),
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidateIntervals checks a caller supplied revision plan
func ValidateIntervals(intervals []int) error {
	if len(intervals) == 0 {
		return domain.ErrEmptyIntervals
	}
	for _, d := range intervals {
		if d <= 0 {
			return domain.ErrInvalidInterval
		}
	}
	return nil
}

// ScheduleRevisions creates one pending task per interval inside tx, numbered
// in the supplied order. Pending tasks left over from an earlier plan for the
// same problem are replaced. Completed history is kept and numbering carries
// on after the highest completed revision.
func (s *RevisionService) ScheduleRevisions(ctx context.Context, tx domain.Store, userID, problemID uuid.UUID, intervals []int, now time.Time) ([]domain.RevisionTask, error) {
	ctx, span := s.tracer.Start(ctx, "RevisionService.ScheduleRevisions")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("problem.id", problemID.String()),
		attribute.IntSlice("revision.intervals", intervals),
	)

	if err := ValidateIntervals(intervals); err != nil {
		return nil, err
	}

	if err := tx.Revisions().DeletePendingByUserAndProblem(ctx, userID, problemID); err != nil {
		return nil, err
	}

	done, err := tx.Revisions().Find(ctx, domain.RevisionQuery{
		UserID:    userID,
		ProblemID: problemID,
		Completed: lo.ToPtr(true),
	})
	if err != nil {
		return nil, err
	}
	offset := lo.Max(lo.Map(done, func(t domain.RevisionTask, _ int) int { return t.RevisionNumber }))

	tasks := lo.Map(intervals, func(days int, i int) domain.RevisionTask {
		return domain.RevisionTask{
			ID:             uuid.New(),
			UserID:         userID,
			ProblemID:      problemID,
			ScheduledDate:  now.AddDate(0, 0, days),
			RevisionNumber: offset + i + 1,
			CreatedAt:      now,
		}
	})

	if err := tx.Revisions().CreateBatch(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CompleteRevision marks the task done and advances the owning progress
// record. The next-date hint comes from the stage table, not from the plan
// the task was scheduled with.
func (s *RevisionService) CompleteRevision(ctx context.Context, taskID, userID uuid.UUID) (*domain.CompleteRevisionResult, error) {
	ctx, span := s.tracer.Start(ctx, "RevisionService.CompleteRevision")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("revision.id", taskID.String()),
	)

	var result *domain.CompleteRevisionResult
	err := atomically(ctx, s.store, s.config.ConflictRetries, s.logger, "complete_revision", func(tx domain.Store) error {
		task, err := s.findOwned(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		if task.Completed {
			return domain.ErrRevisionAlreadyCompleted
		}

		now := s.now()
		if err := tx.Revisions().MarkCompleted(ctx, task.ID, now); err != nil {
			return err
		}
		task.Completed = true
		task.CompletedAt = &now

		record, err := tx.Progress().FindByUserAndProblem(ctx, userID, task.ProblemID)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrProgressNotFound
		}

		record.RevisionCount++
		record.RevisionDates = append(record.RevisionDates, now)
		if next, ok := s.nextStageDate(task.RevisionNumber, now); ok {
			record.NextRevisionDate = &next
		}

		if err := tx.Progress().Update(ctx, record); err != nil {
			return err
		}

		result = &domain.CompleteRevisionResult{Revision: *task, Progress: *record}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, userID)
	if s.metrics != nil {
		s.metrics.RevisionsCompleted.Add(ctx, 1)
	}

	s.logger.Info("Revision completed",
		zap.String("user_id", userID.String()),
		zap.String("revision_id", taskID.String()),
		zap.Int("revision_number", result.Revision.RevisionNumber),
		zap.Int("revision_count", result.Progress.RevisionCount),
	)

	return result, nil
}

// nextStageDate looks up the stage after revisionNumber. Past the end of the
// stage table the caller keeps whatever hint the record already has.
func (s *RevisionService) nextStageDate(revisionNumber int, now time.Time) (time.Time, bool) {
	if revisionNumber < 1 || revisionNumber >= len(s.config.StageDays) {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, s.config.StageDays[revisionNumber]), true
}

// DeleteRevision removes the task and stops revising its problem
func (s *RevisionService) DeleteRevision(ctx context.Context, taskID, userID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "RevisionService.DeleteRevision")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("revision.id", taskID.String()),
	)

	err := atomically(ctx, s.store, s.config.ConflictRetries, s.logger, "delete_revision", func(tx domain.Store) error {
		task, err := s.findOwned(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		if err := tx.Revisions().Delete(ctx, task.ID); err != nil {
			return err
		}

		record, err := tx.Progress().FindByUserAndProblem(ctx, userID, task.ProblemID)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		record.MarkedForRevision = false
		record.NextRevisionDate = nil
		return tx.Progress().Update(ctx, record)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, userID)
	s.logger.Info("Revision track stopped",
		zap.String("user_id", userID.String()),
		zap.String("revision_id", taskID.String()),
	)
	return nil
}

// findOwned conflates "missing" and "owned by someone else"
func (s *RevisionService) findOwned(ctx context.Context, tx domain.Store, taskID, userID uuid.UUID) (*domain.RevisionTask, error) {
	task, err := tx.Revisions().FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, domain.ErrRevisionNotFound
	}
	return task, nil
}

// ListOverdue returns pending tasks scheduled before the start of asOf's day
func (s *RevisionService) ListOverdue(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]domain.RevisionTask, error) {
	ctx, span := s.tracer.Start(ctx, "RevisionService.ListOverdue")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	return s.store.Revisions().Find(ctx, domain.RevisionQuery{
		UserID:          userID,
		Completed:       lo.ToPtr(false),
		ScheduledBefore: domain.StartOfDay(asOf, s.location),
	})
}

// ListBySchedule returns the user's tasks filtered by status
func (s *RevisionService) ListBySchedule(ctx context.Context, userID uuid.UUID, status domain.RevisionStatus, asOf time.Time) ([]domain.RevisionTask, error) {
	ctx, span := s.tracer.Start(ctx, "RevisionService.ListBySchedule")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("revision.status", string(status)),
	)

	query := domain.RevisionQuery{UserID: userID}
	switch status {
	case domain.RevisionStatusAll, "":
	case domain.RevisionStatusPending:
		query.Completed = lo.ToPtr(false)
	case domain.RevisionStatusCompleted:
		query.Completed = lo.ToPtr(true)
	case domain.RevisionStatusOverdue:
		return s.ListOverdue(ctx, userID, asOf)
	default:
		return nil, domain.ErrInvalidStatusFilter
	}
	return s.store.Revisions().Find(ctx, query)
}

// ComputeStats builds the revision dashboard for asOf's day
func (s *RevisionService) ComputeStats(ctx context.Context, userID uuid.UUID, asOf time.Time) (*domain.RevisionStats, error) {
	ctx, span := s.tracer.Start(ctx, "RevisionService.ComputeStats")
	defer span.End()

	span.SetAttributes(attribute.String("user.id", userID.String()))

	today := domain.StartOfDay(asOf, s.location)
	day := today.Format(time.DateOnly)
	stats, generation, ok := s.cache.Get(ctx, userID, day)
	if s.metrics != nil {
		s.metrics.StatsCacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", ok)))
	}
	span.SetAttributes(attribute.Bool("cache.hit", ok))
	if ok {
		return stats, nil
	}

	tomorrow := today.AddDate(0, 0, 1)
	pending := lo.ToPtr(false)

	var dueToday, overdue, totalPending int64
	var weakTopics []string

	// Fan-out: independent read-only queries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dueToday, err = s.store.Revisions().Count(gctx, domain.RevisionQuery{
			UserID: userID, Completed: pending, ScheduledFrom: today, ScheduledBefore: tomorrow,
		})
		return err
	})
	g.Go(func() error {
		var err error
		overdue, err = s.store.Revisions().Count(gctx, domain.RevisionQuery{
			UserID: userID, Completed: pending, ScheduledBefore: today,
		})
		return err
	})
	g.Go(func() error {
		var err error
		totalPending, err = s.store.Revisions().Count(gctx, domain.RevisionQuery{
			UserID: userID, Completed: pending,
		})
		return err
	})
	g.Go(func() error {
		var err error
		weakTopics, err = s.weakTopics(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to compute revision stats",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	stats = &domain.RevisionStats{
		DueToday:     int(dueToday),
		Overdue:      int(overdue),
		TotalPending: int(totalPending),
		WeakTopics:   weakTopics,
	}
	s.cache.Set(ctx, userID, day, generation, stats)
	return stats, nil
}

// weakTopics ranks topics by how many revision-marked records carry them.
// Ties keep first-seen order.
func (s *RevisionService) weakTopics(ctx context.Context, userID uuid.UUID) ([]string, error) {
	records, err := s.store.Progress().FindMarkedForRevision(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []string{}, nil
	}

	ids := lo.Uniq(lo.Map(records, func(r domain.ProgressRecord, _ int) uuid.UUID { return r.ProblemID }))
	problems, err := s.store.Problems().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(problems, func(p domain.Problem) uuid.UUID { return p.ID })

	var order []string
	counts := make(map[string]int)
	for _, r := range records {
		p, ok := byID[r.ProblemID]
		if !ok {
			continue
		}
		for _, topic := range p.Topics {
			if _, seen := counts[topic]; !seen {
				order = append(order, topic)
			}
			counts[topic]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > weakTopicLimit {
		order = order[:weakTopicLimit]
	}
	if order == nil {
		order = []string{}
	}
	return order, nil
}

// InvalidateStats drops cached dashboards of the user
func (s *RevisionService) InvalidateStats(ctx context.Context, userID uuid.UUID) {
	s.cache.Invalidate(ctx, userID)
}
