package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/infrastructure"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	testDB *gorm.DB
	dbErr  error
)

// openDB connects once per package run and skips when no database is set up
func openDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}
		testDB, dbErr = gorm.Open(postgres.Open(dsn), infrastructure.GormConfig(zap.NewNop()))
		if dbErr != nil {
			return
		}
		dbErr = infrastructure.Migrate(testDB)
	})
	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repository integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return testDB
}

// txStore runs the test inside a transaction that is rolled back afterwards
func txStore(tb testing.TB) domain.Store {
	tb.Helper()
	tx := openDB(tb).Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return NewStore(tx)
}

type fixture struct {
	user    *domain.User
	problem domain.Problem
}

func seed(t *testing.T, store domain.Store) fixture {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	user := &domain.User{
		Email:        "repo-" + suffix + "@example.com",
		Username:     "repo",
		PasswordHash: "x",
		Role:         domain.RoleUser,
		Level:        1,
	}
	require.NoError(t, store.Users().Create(ctx, user))

	problems := []domain.Problem{{
		Title:      "Merge Intervals",
		Slug:       "merge-intervals-" + suffix,
		Difficulty: domain.DifficultyMedium,
		Topics:     []string{"Arrays", "Sorting"},
		Platform:   "LeetCode",
		URL:        "https://leetcode.com/problems/merge-intervals/",
	}}
	require.NoError(t, store.Problems().CreateBatch(ctx, problems))
	return fixture{user: user, problem: problems[0]}
}

func TestProgressUpdateDetectsStaleVersion(t *testing.T) {
	store := txStore(t)
	ctx := context.Background()
	f := seed(t, store)

	record := &domain.ProgressRecord{UserID: f.user.ID, ProblemID: f.problem.ID, Solved: true}
	require.NoError(t, store.Progress().Create(ctx, record))

	first, err := store.Progress().FindByID(ctx, record.ID)
	require.NoError(t, err)
	second, err := store.Progress().FindByID(ctx, record.ID)
	require.NoError(t, err)

	first.Notes = "two pointers"
	require.NoError(t, store.Progress().Update(ctx, first))
	assert.Equal(t, second.Version+1, first.Version)

	second.Notes = "brute force"
	assert.ErrorIs(t, store.Progress().Update(ctx, second), domain.ErrStaleWrite)

	stored, err := store.Progress().FindByUserAndProblem(ctx, f.user.ID, f.problem.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "two pointers", stored.Notes)
}

func TestProgressDuplicateCreateIsStaleWrite(t *testing.T) {
	store := txStore(t)
	ctx := context.Background()
	f := seed(t, store)

	require.NoError(t, store.Progress().Create(ctx, &domain.ProgressRecord{UserID: f.user.ID, ProblemID: f.problem.ID}))

	// the savepoint keeps the outer transaction usable after the violation
	err := store.Atomic(ctx, func(tx domain.Store) error {
		return tx.Progress().Create(ctx, &domain.ProgressRecord{UserID: f.user.ID, ProblemID: f.problem.ID})
	})
	assert.ErrorIs(t, err, domain.ErrStaleWrite)

	records, err := store.Progress().FindByUserID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestUserGameStateDetectsStaleVersion(t *testing.T) {
	store := txStore(t)
	ctx := context.Background()
	f := seed(t, store)

	stale := *f.user
	f.user.XPPoints = 10
	require.NoError(t, store.Users().UpdateGameState(ctx, f.user))

	stale.XPPoints = 99
	assert.ErrorIs(t, store.Users().UpdateGameState(ctx, &stale), domain.ErrStaleWrite)

	stored, err := store.Users().FindByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.XPPoints)

	require.NoError(t, store.Users().UpdateRole(ctx, f.user.ID, domain.RoleAdmin))
	assert.ErrorIs(t, store.Users().UpdateRole(ctx, uuid.New(), domain.RoleAdmin), domain.ErrUserNotFound)
}

func TestMarkCompletedOnlyOnce(t *testing.T) {
	store := txStore(t)
	ctx := context.Background()
	f := seed(t, store)
	now := time.Now().UTC().Truncate(time.Second)

	tasks := []domain.RevisionTask{
		{UserID: f.user.ID, ProblemID: f.problem.ID, ScheduledDate: now.AddDate(0, 0, 1), RevisionNumber: 1},
		{UserID: f.user.ID, ProblemID: f.problem.ID, ScheduledDate: now.AddDate(0, 0, 7), RevisionNumber: 2},
	}
	require.NoError(t, store.Revisions().CreateBatch(ctx, tasks))

	require.NoError(t, store.Revisions().MarkCompleted(ctx, tasks[0].ID, now))
	assert.ErrorIs(t, store.Revisions().MarkCompleted(ctx, tasks[0].ID, now), domain.ErrRevisionAlreadyCompleted)
	assert.ErrorIs(t, store.Revisions().MarkCompleted(ctx, uuid.New(), now), domain.ErrRevisionNotFound)

	done, err := store.Revisions().Find(ctx, domain.RevisionQuery{
		UserID:    f.user.ID,
		ProblemID: f.problem.ID,
		Completed: lo.ToPtr(true),
	})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, 1, done[0].RevisionNumber)
	assert.Equal(t, f.problem.Slug, done[0].Problem.Slug)

	require.NoError(t, store.Revisions().DeletePendingByUserAndProblem(ctx, f.user.ID, f.problem.ID))
	remaining, err := store.Revisions().Count(ctx, domain.RevisionQuery{UserID: f.user.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestAtomicRollsBackRevisionBatch(t *testing.T) {
	store := txStore(t)
	ctx := context.Background()
	f := seed(t, store)

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(tx domain.Store) error {
		tasks := []domain.RevisionTask{{UserID: f.user.ID, ProblemID: f.problem.ID, ScheduledDate: time.Now(), RevisionNumber: 1}}
		if err := tx.Revisions().CreateBatch(ctx, tasks); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := store.Revisions().Count(ctx, domain.RevisionQuery{UserID: f.user.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}
