package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sheet-tracker/backend/internal/domain"
)

const (
	statsKeyPrefix      = "revision:stats:"
	generationKeyPrefix = "revision:stats-gen:"

	// generationTTL outlives any stats entry by a wide margin
	generationTTL = 24 * time.Hour
)

var errGenerationMoved = errors.New("stats generation moved")

// RedisStatsCache keeps revision dashboards in one Redis hash per user,
// keyed by calendar day. Invalidation drops the whole hash.
type RedisStatsCache struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ domain.RevisionStatsCache = (*RedisStatsCache)(nil)

// NewStatsCache connects to Redis when an address is configured and falls
// back to a cache that never hits otherwise
func NewStatsCache(ctx context.Context, config *CacheConfig, logger *zap.Logger) (domain.RevisionStatsCache, func() error, error) {
	if config.RedisAddr == "" {
		logger.Info("Redis not configured, revision stats cache disabled")
		return NoopStatsCache{}, func() error { return nil }, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        config.RedisAddr,
		Password:    config.RedisPassword,
		DB:          config.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis stats cache connected",
		zap.String("addr", config.RedisAddr),
		zap.Duration("ttl", config.StatsTTL),
	)

	return &RedisStatsCache{rdb: rdb, ttl: config.StatsTTL, logger: logger}, rdb.Close, nil
}

func statsKey(userID uuid.UUID) string {
	return statsKeyPrefix + userID.String()
}

func generationKey(userID uuid.UUID) string {
	return generationKeyPrefix + userID.String()
}

// Get returns the cached stats for the day. Both keys are read in one
// MULTI so the generation matches the snapshot of the hash.
func (c *RedisStatsCache) Get(ctx context.Context, userID uuid.UUID, day string) (*domain.RevisionStats, int64, bool) {
	pipe := c.rdb.TxPipeline()
	genCmd := pipe.Get(ctx, generationKey(userID))
	rawCmd := pipe.HGet(ctx, statsKey(userID), day)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		c.logger.Warn("Revision stats cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, domain.UnknownGeneration, false
	}

	generation, err := genCmd.Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, domain.UnknownGeneration, false
	}

	raw, err := rawCmd.Bytes()
	if err != nil {
		return nil, generation, false
	}
	var stats domain.RevisionStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.Warn("Bad revision stats cache payload", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, generation, false
	}
	return &stats, generation, true
}

// Set stores stats for the day and refreshes the hash expiry. The write is
// dropped when the generation moved since Get.
func (c *RedisStatsCache) Set(ctx context.Context, userID uuid.UUID, day string, generation int64, stats *domain.RevisionStats) {
	if generation == domain.UnknownGeneration {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}

	key, genKey := statsKey(userID), generationKey(userID)
	err = c.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if current != generation {
			return errGenerationMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, day, raw)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errGenerationMoved), errors.Is(err, goredis.TxFailedErr):
		c.logger.Debug("Revision stats changed while computing, not cached", zap.String("user_id", userID.String()))
	default:
		c.logger.Warn("Revision stats cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// Invalidate forgets every cached day of the user and bumps the generation
func (c *RedisStatsCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	genKey := generationKey(userID)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, statsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Revision stats cache invalidation failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// NoopStatsCache never stores anything
type NoopStatsCache struct{}

func (NoopStatsCache) Get(context.Context, uuid.UUID, string) (*domain.RevisionStats, int64, bool) {
	return nil, domain.UnknownGeneration, false
}
func (NoopStatsCache) Set(context.Context, uuid.UUID, string, int64, *domain.RevisionStats) {}
func (NoopStatsCache) Invalidate(context.Context, uuid.UUID)                                {}
