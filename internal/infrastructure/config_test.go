package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	config := LoadConfig()

	assert.Equal(t, []int{1, 7, 30}, config.Revision.DefaultIntervalDays)
	assert.Equal(t, []int{1, 7, 30}, config.Revision.StageDays)
	assert.Equal(t, 3, config.Revision.ConflictRetries)
	assert.Equal(t, 10, config.Gamification.XPPerSolve)
	assert.False(t, config.Gamification.AwardXPOnResolve)
	assert.Equal(t, 5*time.Minute, config.Cache.StatsTTL)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REVISION_DEFAULT_DAYS", "2, 5,21")
	t.Setenv("REVISION_STAGE_DAYS", "1,3")
	t.Setenv("XP_PER_SOLVE", "25")
	t.Setenv("XP_AWARD_ON_RESOLVE", "true")
	t.Setenv("APP_TIMEZONE", "Asia/Kolkata")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://sheets.example.com")

	config := LoadConfig()

	assert.Equal(t, []int{2, 5, 21}, config.Revision.DefaultIntervalDays)
	assert.Equal(t, []int{1, 3}, config.Revision.StageDays)
	assert.Equal(t, 25, config.Gamification.XPPerSolve)
	assert.True(t, config.Gamification.AwardXPOnResolve)
	assert.Equal(t, "memory", config.Database.Driver)
	assert.Equal(t, []string{"https://sheets.example.com"}, config.CORS.AllowOrigins)
	assert.Equal(t, "Asia/Kolkata", config.Revision.TimeZone)
}

func TestGetEnvIntList(t *testing.T) {
	fallback := []int{1, 7, 30}
	tests := []struct {
		value string
		want  []int
	}{
		{"", fallback},
		{"4", []int{4}},
		{"3,10", []int{3, 10}},
		{"3,abc", fallback},
		{"3,0", fallback},
		{"-1", fallback},
		{" , ", fallback},
	}
	for _, tt := range tests {
		t.Setenv("TEST_INT_LIST", tt.value)
		assert.Equal(t, tt.want, getEnvIntList("TEST_INT_LIST", fallback), "value %q", tt.value)
	}
}

func TestRevisionLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, (&RevisionConfig{}).Location())
	assert.Equal(t, time.UTC, (&RevisionConfig{TimeZone: "Mars/Olympus"}).Location())
}

func TestStatsCacheDisabledWithoutRedis(t *testing.T) {
	ctx := context.Background()
	cache, closeCache, err := NewStatsCache(ctx, &CacheConfig{}, zap.NewNop())
	require.NoError(t, err)
	defer closeCache()

	assert.IsType(t, NoopStatsCache{}, cache)

	userID := uuid.New()
	cache.Set(ctx, userID, "2024-01-10", 0, nil)
	_, generation, hit := cache.Get(ctx, userID, "2024-01-10")
	assert.False(t, hit)
	assert.Equal(t, domain.UnknownGeneration, generation)
}

func TestNewLoggerLevel(t *testing.T) {
	logger, err := NewLogger(&LogConfig{Environment: "production", Level: "warn", Service: "test"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = NewLogger(&LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
