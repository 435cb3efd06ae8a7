package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/photovault/memories/internal/apperr"
	"github.com/photovault/memories/internal/db"
)

func seedMemory(t *testing.T, gdb *gorm.DB, userID uint64, target time.Time, score float64) db.Memory {
	t.Helper()
	m := db.Memory{UserID: userID, TargetDate: db.DateOnly(target), SignificanceScore: score}
	require.NoError(t, gdb.Create(&m).Error)
	return m
}

func TestTrackEngagementCounts(t *testing.T) {
	ctx := context.Background()
	engine, appCtx, _ := setupEngine(t)
	m := seedMemory(t, appCtx.DB, 1, targetDate, 2.5)

	require.NoError(t, engine.TrackEngagement(ctx, m.ID, db.InteractionView, "10.0.0.1", "test-agent"))
	require.NoError(t, engine.TrackEngagement(ctx, m.ID, db.InteractionView, "10.0.0.1", "test-agent"))
	require.NoError(t, engine.TrackEngagement(ctx, m.ID, db.InteractionLike, "10.0.0.2", "test-agent"))

	var reloaded db.Memory
	require.NoError(t, appCtx.DB.First(&reloaded, m.ID).Error)
	assert.Equal(t, 3, reloaded.EngagementCount)
	assert.NotNil(t, reloaded.LastViewedAt)

	var events int64
	require.NoError(t, appCtx.DB.Model(&db.EngagementEvent{}).
		Where("memory_id = ?", m.ID).Count(&events).Error)
	assert.Equal(t, int64(3), events)
}

func TestTrackEngagementRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	engine, appCtx, _ := setupEngine(t)
	m := seedMemory(t, appCtx.DB, 1, targetDate, 2.5)

	err := engine.TrackEngagement(ctx, m.ID, "poke", "10.0.0.1", "test-agent")
	assert.True(t, apperr.IsValidation(err))

	var events int64
	require.NoError(t, appCtx.DB.Model(&db.EngagementEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestTrackEngagementMissingMemorySwallowed(t *testing.T) {
	ctx := context.Background()
	engine, appCtx, _ := setupEngine(t)

	// tracking favors availability: a stale client id is not an error
	assert.NoError(t, engine.TrackEngagement(ctx, 9999, db.InteractionView, "10.0.0.1", "test-agent"))

	var events int64
	require.NoError(t, appCtx.DB.Model(&db.EngagementEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}
