package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheet-tracker/backend/internal/domain"
)

func TestValidateIntervals(t *testing.T) {
	assert.NoError(t, ValidateIntervals([]int{1, 7, 30}))
	assert.NoError(t, ValidateIntervals([]int{5}))
	assert.ErrorIs(t, ValidateIntervals(nil), domain.ErrEmptyIntervals)
	assert.ErrorIs(t, ValidateIntervals([]int{}), domain.ErrEmptyIntervals)
	assert.ErrorIs(t, ValidateIntervals([]int{3, -1}), domain.ErrInvalidInterval)
}

func TestCompleteRevisionAdvancesProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	problem := env.catalog[0]
	env.solve(t, problem, true)
	tasks := env.tasks(t, domain.RevisionStatusPending)

	completedAt := testNow.Add(2 * time.Hour)
	env.setNow(completedAt)

	result, err := env.revisions.CompleteRevision(ctx, tasks[0].ID, env.user.ID)
	require.NoError(t, err)

	assert.True(t, result.Revision.Completed)
	require.NotNil(t, result.Revision.CompletedAt)
	assert.True(t, result.Revision.CompletedAt.Equal(completedAt))

	assert.Equal(t, 1, result.Progress.RevisionCount)
	require.Len(t, result.Progress.RevisionDates, 1)
	assert.True(t, result.Progress.RevisionDates[0].Equal(completedAt))
	require.NotNil(t, result.Progress.NextRevisionDate)
	assert.True(t, result.Progress.NextRevisionDate.Equal(completedAt.AddDate(0, 0, 7)))

	stored, err := env.store.Progress().FindByUserAndProblem(ctx, env.user.ID, problem.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RevisionCount)

	_, err = env.revisions.CompleteRevision(ctx, tasks[0].ID, env.user.ID)
	assert.ErrorIs(t, err, domain.ErrRevisionAlreadyCompleted)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCompleteLastStageKeepsNextDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	record := env.solve(t, env.catalog[0], true)
	require.NotNil(t, record.NextRevisionDate)
	tasks := env.tasks(t, domain.RevisionStatusPending)

	result, err := env.revisions.CompleteRevision(ctx, tasks[2].ID, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Revision.RevisionNumber)
	assert.Equal(t, 1, result.Progress.RevisionCount)

	// past the stage table the earlier hint stays while tasks remain pending
	require.NotNil(t, result.Progress.NextRevisionDate)
	assert.True(t, result.Progress.NextRevisionDate.Equal(*record.NextRevisionDate))
	assert.Len(t, env.tasks(t, domain.RevisionStatusPending), 2)
}

func TestCompleteUsesStageTableNotPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.solve(t, env.catalog[0], true, 2, 4)
	tasks := env.tasks(t, domain.RevisionStatusPending)

	result, err := env.revisions.CompleteRevision(ctx, tasks[0].ID, env.user.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Progress.NextRevisionDate)
	assert.True(t, result.Progress.NextRevisionDate.Equal(testNow.AddDate(0, 0, env.revConfig.StageDays[1])))
}

func TestCompleteRevisionOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.solve(t, env.catalog[0], true)
	task := env.tasks(t, domain.RevisionStatusPending)[0]

	_, err := env.revisions.CompleteRevision(ctx, task.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRevisionNotFound)

	_, err = env.revisions.CompleteRevision(ctx, uuid.New(), env.user.ID)
	assert.ErrorIs(t, err, domain.ErrRevisionNotFound)

	// the failed attempts left the task pending
	assert.Len(t, env.tasks(t, domain.RevisionStatusPending), 3)
}

func TestDeleteRevisionStopsTracking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	problem := env.catalog[0]
	env.solve(t, problem, true)
	tasks := env.tasks(t, domain.RevisionStatusPending)

	require.NoError(t, env.revisions.DeleteRevision(ctx, tasks[0].ID, env.user.ID))

	remaining := env.tasks(t, domain.RevisionStatusAll)
	assert.Len(t, remaining, 2)
	for _, task := range remaining {
		assert.NotEqual(t, tasks[0].ID, task.ID)
	}

	record, err := env.store.Progress().FindByUserAndProblem(ctx, env.user.ID, problem.ID)
	require.NoError(t, err)
	assert.False(t, record.MarkedForRevision)
	assert.Nil(t, record.NextRevisionDate)

	assert.ErrorIs(t, env.revisions.DeleteRevision(ctx, tasks[0].ID, env.user.ID), domain.ErrRevisionNotFound)
	assert.ErrorIs(t, env.revisions.DeleteRevision(ctx, tasks[1].ID, uuid.New()), domain.ErrRevisionNotFound)
}

func TestListOverdueExcludesToday(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// solved nine days before testNow: tasks land on Jan 2, Jan 10 and Jan 21
	env.setNow(testNow.AddDate(0, 0, -9))
	env.solve(t, env.catalog[0], true, 1, 9, 20)
	env.setNow(testNow)

	asOf := testNow.Add(5 * time.Hour)
	overdue, err := env.revisions.ListOverdue(ctx, env.user.ID, asOf)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, 1, overdue[0].RevisionNumber)

	filtered, err := env.revisions.ListBySchedule(ctx, env.user.ID, domain.RevisionStatusOverdue, asOf)
	require.NoError(t, err)
	assert.Equal(t, overdue, filtered)

	stats, err := env.revisions.ComputeStats(ctx, env.user.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.DueToday)
	assert.Equal(t, 3, stats.TotalPending)

	// completing the overdue task clears it
	_, err = env.revisions.CompleteRevision(ctx, overdue[0].ID, env.user.ID)
	require.NoError(t, err)
	overdue, err = env.revisions.ListOverdue(ctx, env.user.ID, asOf)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestListByScheduleFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.solve(t, env.catalog[0], true)
	env.solve(t, env.catalog[1], true, 3)

	all := env.tasks(t, domain.RevisionStatusAll)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].ScheduledDate.Before(all[i-1].ScheduledDate))
	}

	_, err := env.revisions.CompleteRevision(ctx, all[0].ID, env.user.ID)
	require.NoError(t, err)

	assert.Len(t, env.tasks(t, domain.RevisionStatusPending), 3)
	assert.Len(t, env.tasks(t, domain.RevisionStatusCompleted), 1)

	_, err = env.revisions.ListBySchedule(ctx, env.user.ID, domain.RevisionStatus("later"), testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusFilter)

	// other users see nothing
	others, err := env.revisions.ListBySchedule(ctx, uuid.New(), domain.RevisionStatusAll, testNow)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestComputeStatsWeakTopics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats, err := env.revisions.ComputeStats(ctx, env.user.ID, testNow)
	require.NoError(t, err)
	assert.NotNil(t, stats.WeakTopics)
	assert.Empty(t, stats.WeakTopics)

	for _, p := range env.catalog {
		env.solve(t, p, true)
	}

	stats, err = env.revisions.ComputeStats(ctx, env.user.ID, testNow)
	require.NoError(t, err)
	// Arrays and Graphs appear twice; Hashing wins the tie by first appearance
	assert.Equal(t, []string{"Arrays", "Graphs", "Hashing"}, stats.WeakTopics)
	assert.Equal(t, 12, stats.TotalPending)
	assert.Zero(t, stats.Overdue)
	assert.Zero(t, stats.DueToday)
}

func TestComputeStatsIgnoresUnmarkedRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.solve(t, env.catalog[1], true)
	env.solve(t, env.catalog[0], false)

	stats, err := env.revisions.ComputeStats(ctx, env.user.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"Graphs", "BFS"}, stats.WeakTopics)
}

func TestCompleteAndDeleteInvalidateStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.solve(t, env.catalog[0], true)
	tasks := env.tasks(t, domain.RevisionStatusPending)

	before := env.cache.invalidated
	_, err := env.revisions.CompleteRevision(ctx, tasks[0].ID, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, before+1, env.cache.invalidated)

	require.NoError(t, env.revisions.DeleteRevision(ctx, tasks[1].ID, env.user.ID))
	assert.Equal(t, before+2, env.cache.invalidated)

	// failures leave the cache alone
	_, err = env.revisions.CompleteRevision(ctx, tasks[0].ID, env.user.ID)
	require.Error(t, err)
	assert.Equal(t, before+2, env.cache.invalidated)
}

func TestComputeStatsDoesNotCacheAcrossConcurrentWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.solve(t, env.catalog[0], true)
	tasks := env.tasks(t, domain.RevisionStatusPending)

	// a completion commits between the reads and the cache write
	env.cache.beforeSet = func() {
		_, err := env.revisions.CompleteRevision(ctx, tasks[0].ID, env.user.ID)
		require.NoError(t, err)
	}

	stale, err := env.revisions.ComputeStats(ctx, env.user.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, stale.TotalPending)
	assert.Equal(t, 1, env.cache.skipped)

	fresh, err := env.revisions.ComputeStats(ctx, env.user.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TotalPending)
	assert.Zero(t, env.cache.hits)

	// with no writer in between the result is cached
	cached, err := env.revisions.ComputeStats(ctx, env.user.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.TotalPending)
	assert.Equal(t, 1, env.cache.hits)
}
