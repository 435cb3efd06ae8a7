package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/photovault/memories/internal/config"
	"github.com/redis/go-redis/v9"
)

// TTLs for the two cached key spaces.
const (
	DailyMemoriesTTL = time.Hour
	AnalyticsTTL     = 15 * time.Minute
)

// InvalidationWindowDays is how far back photo mutations invalidate daily
// memory entries. A photo whose capture date is an older anniversary can
// leave a stale negative-cache entry outside this window; that staleness is
// bounded by DailyMemoriesTTL and is a known, accepted gap.
const InvalidationWindowDays = 7

// RedisCache wraps the Redis client with degrade-to-miss semantics: the
// cache is an optimization only, so every error short of redis.Nil is logged
// and treated as a miss. Callers never see a cache failure.
type RedisCache struct {
	Client *redis.Client
	Logger *slog.Logger
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config, logger *slog.Logger) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts), Logger: logger}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Get returns the cached value and whether it was present. Backend errors
// count as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.warn("cache get failed, treating as miss", key, err)
		return nil, false
	}
	return val, true
}

// Set stores a value best-effort. Errors are logged and swallowed.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.warn("cache set failed", key, err)
	}
}

// Del removes keys best-effort. Errors are logged and swallowed.
func (c *RedisCache) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		c.warn("cache delete failed", keys[0], err)
	}
}

// KeyForDailyMemories generates the key caching a user's memory ids for a
// target date. An empty cached list is a negative result.
func (c *RedisCache) KeyForDailyMemories(userID uint64, targetDate time.Time) string {
	return fmt.Sprintf("memories:daily:%d:%s", userID, targetDate.Format("2006-01-02"))
}

// KeyForAnalytics generates the key caching a user's analytics blob for a
// trailing window of days.
func (c *RedisCache) KeyForAnalytics(userID uint64, days int) string {
	return fmt.Sprintf("memories:analytics:%d:%d", userID, days)
}

// InvalidateDailyMemories drops the cached entry for one (user, date).
func (c *RedisCache) InvalidateDailyMemories(ctx context.Context, userID uint64, targetDate time.Time) {
	c.Del(ctx, c.KeyForDailyMemories(userID, targetDate))
}

// InvalidateUserMemoryWindow drops the daily entries for today and the
// preceding InvalidationWindowDays-1 days. Called when the user's photo set
// mutates.
func (c *RedisCache) InvalidateUserMemoryWindow(ctx context.Context, userID uint64, today time.Time) {
	keys := make([]string, 0, InvalidationWindowDays)
	for i := 0; i < InvalidationWindowDays; i++ {
		keys = append(keys, c.KeyForDailyMemories(userID, today.AddDate(0, 0, -i)))
	}
	c.Del(ctx, keys...)
}

func (c *RedisCache) warn(msg, key string, err error) {
	if c.Logger != nil {
		c.Logger.Warn(msg, "key", key, "err", err)
	}
}
