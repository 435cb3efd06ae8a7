package cache_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photovault/memories/internal/cache"
	"github.com/photovault/memories/internal/config"
)

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestGetSetRoundtrip(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"), time.Minute)
	val, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "entry expires with its TTL")
}

func TestGetDegradesToMissWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	mr.Close()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	c.Set(ctx, "k", []byte("v"), time.Minute) // must not panic or error out
	c.Del(ctx, "k")
}

func TestKeyFormats(t *testing.T) {
	c, _ := setupCache(t)

	date := time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC)
	assert.Equal(t, "memories:daily:42:2024-06-15", c.KeyForDailyMemories(42, date))
	assert.Equal(t, "memories:analytics:42:30", c.KeyForAnalytics(42, 30))
}

func TestInvalidateUserMemoryWindow(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	today := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		c.Set(ctx, c.KeyForDailyMemories(1, today.AddDate(0, 0, -i)), []byte("[]"), time.Hour)
	}
	c.Set(ctx, c.KeyForDailyMemories(2, today), []byte("[]"), time.Hour)

	c.InvalidateUserMemoryWindow(ctx, 1, today)

	// the 7-day window is gone, older entries and other users survive
	for i := 0; i < cache.InvalidationWindowDays; i++ {
		assert.False(t, mr.Exists(c.KeyForDailyMemories(1, today.AddDate(0, 0, -i))), fmt.Sprintf("day -%d", i))
	}
	for i := cache.InvalidationWindowDays; i < 10; i++ {
		assert.True(t, mr.Exists(c.KeyForDailyMemories(1, today.AddDate(0, 0, -i))), fmt.Sprintf("day -%d", i))
	}
	assert.True(t, mr.Exists(c.KeyForDailyMemories(2, today)))
}
