package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/repository"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

var testDate = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func TestCreateWithPhotosConflictReturnsWinner(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMemoryRepository(dbase)

	first := &db.Memory{UserID: 1, TargetDate: testDate, SignificanceScore: 2.0}
	links := []db.MemoryPhoto{{PhotoID: 10, SignificanceScore: 2.0}}

	winner, created, err := repo.CreateWithPhotos(ctx, first, links)
	require.NoError(t, err)
	assert.True(t, created)

	// same (user, date) again: the original row wins
	second := &db.Memory{UserID: 1, TargetDate: testDate, SignificanceScore: 9.0}
	got, created, err := repo.CreateWithPhotos(ctx, second, []db.MemoryPhoto{{PhotoID: 20}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, got.ID)
	assert.InDelta(t, 2.0, got.SignificanceScore, 1e-9)

	gotLinks, err := repo.ListPhotoLinks(ctx, winner.ID)
	require.NoError(t, err)
	require.Len(t, gotLinks, 1, "loser's links must not be written")
	assert.Equal(t, uint64(10), gotLinks[0].PhotoID)
}

func TestListPhotoLinksPreservesOrder(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMemoryRepository(dbase)

	m := &db.Memory{UserID: 1, TargetDate: testDate}
	links := []db.MemoryPhoto{
		{PhotoID: 30, SignificanceScore: 5.0},
		{PhotoID: 10, SignificanceScore: 3.0},
		{PhotoID: 20, SignificanceScore: 1.5},
	}
	_, _, err := repo.CreateWithPhotos(ctx, m, links)
	require.NoError(t, err)

	got, err := repo.ListPhotoLinks(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, want := range []uint64{30, 10, 20} {
		assert.Equal(t, want, got[i].PhotoID)
		assert.Equal(t, i, got[i].DisplayOrder)
	}
}

func TestListPhotosJoinsInDisplayOrder(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMemoryRepository(dbase)

	for _, id := range []uint64{10, 20} {
		require.NoError(t, dbase.Create(&db.Photo{ID: id, UserID: 1}).Error)
	}

	m := &db.Memory{UserID: 1, TargetDate: testDate}
	_, _, err := repo.CreateWithPhotos(ctx, m, []db.MemoryPhoto{
		{PhotoID: 20, SignificanceScore: 4.0},
		{PhotoID: 10, SignificanceScore: 2.0},
	})
	require.NoError(t, err)

	photos, err := repo.ListPhotos(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, uint64(20), photos[0].ID)
	assert.Equal(t, uint64(10), photos[1].ID)
}

func TestAppendEngagementRefreshesCounters(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMemoryRepository(dbase)

	m := &db.Memory{UserID: 1, TargetDate: testDate}
	require.NoError(t, dbase.Create(m).Error)

	require.NoError(t, repo.AppendEngagement(ctx, &db.EngagementEvent{MemoryID: m.ID, InteractionType: db.InteractionView}))
	require.NoError(t, repo.AppendEngagement(ctx, &db.EngagementEvent{MemoryID: m.ID, InteractionType: db.InteractionLike}))

	var reloaded db.Memory
	require.NoError(t, dbase.First(&reloaded, m.ID).Error)
	assert.Equal(t, 2, reloaded.EngagementCount)
	assert.NotNil(t, reloaded.LastViewedAt)
}

func TestMemoryStatsSince(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMemoryRepository(dbase)

	require.NoError(t, dbase.Create(&db.Memory{UserID: 1, TargetDate: testDate, SignificanceScore: 2.0}).Error)
	require.NoError(t, dbase.Create(&db.Memory{UserID: 1, TargetDate: testDate.AddDate(0, 0, 1), SignificanceScore: 4.0}).Error)

	count, avg, err := repo.MemoryStatsSince(ctx, 1, time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.InDelta(t, 3.0, avg, 1e-9)

	// empty window
	count, avg, err = repo.MemoryStatsSince(ctx, 2, time.Now().UTC().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, avg)
}

func TestDeleteOlderThanCascades(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewMemoryRepository(dbase)

	now := time.Now().UTC()
	old := &db.Memory{UserID: 1, TargetDate: testDate, CreatedAt: now.AddDate(0, 0, -400)}
	require.NoError(t, dbase.Create(old).Error)
	require.NoError(t, dbase.Create(&db.MemoryPhoto{MemoryID: old.ID, PhotoID: 10}).Error)
	require.NoError(t, dbase.Create(&db.EngagementEvent{MemoryID: old.ID, InteractionType: db.InteractionView}).Error)

	recent := &db.Memory{UserID: 1, TargetDate: testDate.AddDate(0, 0, 1)}
	require.NoError(t, dbase.Create(recent).Error)

	deleted, err := repo.DeleteOlderThan(ctx, now.AddDate(0, 0, -365))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var memories, links, events int64
	require.NoError(t, dbase.Model(&db.Memory{}).Count(&memories).Error)
	require.NoError(t, dbase.Model(&db.MemoryPhoto{}).Count(&links).Error)
	require.NoError(t, dbase.Model(&db.EngagementEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), memories)
	assert.Zero(t, links)
	assert.Zero(t, events)
}
