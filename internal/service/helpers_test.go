package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/infrastructure"
	"github.com/sheet-tracker/backend/internal/repository/memory"
)

var testNow = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	store        domain.Store
	faults       *faults
	cache        *recordingCache
	revisions    *RevisionService
	progress     *ProgressService
	gamification *GamificationService
	users        *UserService
	problems     *ProblemService
	admin        *AdminService
	revConfig    *infrastructure.RevisionConfig
	xpConfig     *infrastructure.GamificationConfig
	user         *domain.User
	catalog      []domain.Problem
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	f := &faults{}
	store := &faultyStore{Store: memory.NewStore(), faults: f}

	catalog := []domain.Problem{
		{Title: "Two Sum", Slug: "two-sum", Difficulty: domain.DifficultyEasy, Topics: []string{"Arrays", "Hashing"}, Platform: "LeetCode", OrderIndex: 1},
		{Title: "Number of Islands", Slug: "number-of-islands", Difficulty: domain.DifficultyMedium, Topics: []string{"Graphs", "BFS"}, Platform: "LeetCode", OrderIndex: 2},
		{Title: "House Robber", Slug: "house-robber", Difficulty: domain.DifficultyMedium, Topics: []string{"Arrays", "DP"}, Platform: "LeetCode", OrderIndex: 3},
		{Title: "Word Ladder", Slug: "word-ladder", Difficulty: domain.DifficultyHard, Topics: []string{"Graphs"}, Platform: "LeetCode", OrderIndex: 4},
	}
	require.NoError(t, store.Problems().CreateBatch(ctx, catalog))

	user := &domain.User{Email: "ada@example.com", Username: "ada", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(ctx, user))

	revConfig := &infrastructure.RevisionConfig{
		DefaultIntervalDays: []int{1, 7, 30},
		StageDays:           []int{1, 7, 30},
		TimeZone:            "UTC",
		ConflictRetries:     3,
	}
	xpConfig := &infrastructure.GamificationConfig{XPPerSolve: 10}
	adminConfig := &infrastructure.AdminConfig{Emails: []string{"Root@Example.com"}}
	jwtConfig := &infrastructure.JWTConfig{
		SecretKey:          "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "sheet-tracker",
	}

	telemetry, err := infrastructure.NewTelemetry(ctx, &infrastructure.TelemetryConfig{ServiceName: "test"}, zap.NewNop())
	require.NoError(t, err)
	metrics, err := telemetry.CreateMetrics()
	require.NoError(t, err)

	tracer := noop.NewTracerProvider().Tracer("test")
	logger := zap.NewNop()
	cache := newRecordingCache()

	gamification := NewGamificationService(store, xpConfig, revConfig, metrics, tracer, logger)
	revisions := NewRevisionService(store, cache, revConfig, metrics, tracer, logger)
	progress := NewProgressService(store, revisions, gamification, revConfig, xpConfig, metrics, tracer, logger)
	users := NewUserService(store.Users(), gamification, jwtConfig, adminConfig, tracer, logger)
	problems := NewProblemService(store.Problems(), store.Sheets(), revConfig.Location(), tracer, logger)
	admin := NewAdminService(store, gamification, revisions, revConfig.ConflictRetries, tracer, logger)

	env := &testEnv{
		store:        store,
		faults:       f,
		cache:        cache,
		revisions:    revisions,
		progress:     progress,
		gamification: gamification,
		users:        users,
		problems:     problems,
		admin:        admin,
		revConfig:    revConfig,
		xpConfig:     xpConfig,
		user:         user,
		catalog:      catalog,
	}
	env.setNow(testNow)
	return env
}

// setNow pins the clock of every service
func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.revisions.now = clock
	e.progress.now = clock
	e.users.now = clock
}

func (e *testEnv) solve(t *testing.T, problem domain.Problem, marked bool, days ...int) *domain.ProgressRecord {
	t.Helper()
	req := &domain.RecordSolveRequest{ProblemID: problem.ID, MarkedForRevision: &marked}
	if len(days) > 0 {
		req.RevisionDays = days
	}
	record, err := e.progress.RecordSolve(context.Background(), e.user.ID, req)
	require.NoError(t, err)
	return record
}

func (e *testEnv) reloadUser(t *testing.T) *domain.User {
	t.Helper()
	u, err := e.store.Users().FindByID(context.Background(), e.user.ID)
	require.NoError(t, err)
	return u
}

func (e *testEnv) tasks(t *testing.T, status domain.RevisionStatus) []domain.RevisionTask {
	t.Helper()
	tasks, err := e.revisions.ListBySchedule(context.Background(), e.user.ID, status, testNow)
	require.NoError(t, err)
	return tasks
}

var errInjected = errors.New("injected failure")

// faults switches on failures inside the wrapped store
type faults struct {
	mu sync.Mutex
	// failBatch makes every revision batch insert fail
	failBatch bool
	// staleGameWrites is the number of game state writes that lose the CAS
	staleGameWrites int
	gameAttempts    int
}

func (f *faults) takeStale() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameAttempts++
	if f.staleGameWrites > 0 {
		f.staleGameWrites--
		return true
	}
	return false
}

type faultyStore struct {
	domain.Store
	faults *faults
}

func (s *faultyStore) Users() domain.UserRepository {
	return &faultyUsers{UserRepository: s.Store.Users(), faults: s.faults}
}

func (s *faultyStore) Revisions() domain.RevisionRepository {
	return &faultyRevisions{RevisionRepository: s.Store.Revisions(), faults: s.faults}
}

func (s *faultyStore) Atomic(ctx context.Context, fn func(tx domain.Store) error) error {
	return s.Store.Atomic(ctx, func(tx domain.Store) error {
		return fn(&faultyStore{Store: tx, faults: s.faults})
	})
}

type faultyUsers struct {
	domain.UserRepository
	faults *faults
}

func (r *faultyUsers) UpdateGameState(ctx context.Context, user *domain.User) error {
	if r.faults.takeStale() {
		return domain.ErrStaleWrite
	}
	return r.UserRepository.UpdateGameState(ctx, user)
}

type faultyRevisions struct {
	domain.RevisionRepository
	faults *faults
}

func (r *faultyRevisions) CreateBatch(ctx context.Context, tasks []domain.RevisionTask) error {
	r.faults.mu.Lock()
	fail := r.faults.failBatch
	r.faults.mu.Unlock()
	if fail {
		return domain.StorageError(errInjected)
	}
	return r.RevisionRepository.CreateBatch(ctx, tasks)
}

// recordingCache is an in-process stats cache that counts its calls and
// follows the generation contract of the Redis cache
type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]*domain.RevisionStats
	generations map[uuid.UUID]int64
	hits        int
	invalidated int
	skipped     int
	// beforeSet runs once, outside the lock, ahead of the next Set
	beforeSet func()
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		entries:     make(map[string]*domain.RevisionStats),
		generations: make(map[uuid.UUID]int64),
	}
}

func (c *recordingCache) Get(_ context.Context, userID uuid.UUID, day string) (*domain.RevisionStats, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats, ok := c.entries[userID.String()+"/"+day]
	if ok {
		c.hits++
	}
	return stats, c.generations[userID], ok
}

func (c *recordingCache) Set(_ context.Context, userID uuid.UUID, day string, generation int64, stats *domain.RevisionStats) {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != generation {
		c.skipped++
		return
	}
	c.entries[userID.String()+"/"+day] = stats
}

func (c *recordingCache) Invalidate(_ context.Context, userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.generations[userID]++
	prefix := userID.String() + "/"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}
