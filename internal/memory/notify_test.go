package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/memory"
)

type recordingDeliverer struct {
	previews []memory.NotificationPreview
	users    []uint64
}

func (d *recordingDeliverer) Deliver(ctx context.Context, userID, memoryID uint64, preview memory.NotificationPreview) error {
	d.previews = append(d.previews, preview)
	d.users = append(d.users, userID)
	return nil
}

func setupNotifier(t *testing.T) (*memory.Notifier, *recordingDeliverer, *gorm.DB) {
	t.Helper()
	engine, appCtx, _ := setupEngine(t)
	deliverer := &recordingDeliverer{}
	return memory.NewNotifier(appCtx, engine, deliverer), deliverer, appCtx.DB
}

func seedUser(t *testing.T, gdb *gorm.DB, id uint64, active bool) {
	t.Helper()
	u := db.User{ID: id, Username: fmt.Sprintf("user%d", id), Email: fmt.Sprintf("u%d@test.com", id), PasswordHash: "x"}
	require.NoError(t, gdb.Create(&u).Error)
	if !active {
		require.NoError(t, gdb.Model(&db.User{}).Where("id = ?", id).Update("active", false).Error)
	}
}

func TestShouldNotifySignificanceGate(t *testing.T) {
	ctx := context.Background()
	notifier, _, gdb := setupNotifier(t)

	high := seedMemory(t, gdb, 1, targetDate, 2.5)
	low := seedMemory(t, gdb, 1, targetDate.AddDate(0, 0, 1), 1.5)

	ok, err := notifier.ShouldNotify(ctx, 1, &high)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = notifier.ShouldNotify(ctx, 1, &low)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldNotifyRespectsPreferences(t *testing.T) {
	ctx := context.Background()
	notifier, _, gdb := setupNotifier(t)

	m := seedMemory(t, gdb, 1, targetDate, 3.0)

	prefs := db.MemoryPreferences{UserID: 1, Frequency: db.FrequencyDaily, FeatureEnabled: true}
	require.NoError(t, gdb.Create(&prefs).Error) // NotificationsEnabled false

	ok, err := notifier.ShouldNotify(ctx, 1, &m)
	require.NoError(t, err)
	assert.False(t, ok)

	// absent preferences row counts as enabled
	other := seedMemory(t, gdb, 2, targetDate, 3.0)
	ok, err = notifier.ShouldNotify(ctx, 2, &other)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNotifyAtMostOncePerMemory(t *testing.T) {
	ctx := context.Background()
	notifier, deliverer, gdb := setupNotifier(t)

	m := seedMemory(t, gdb, 1, db.DateOnly(time.Now().UTC()).AddDate(-1, 0, 0), 2.5)

	ok, err := notifier.ShouldNotify(ctx, 1, &m)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, notifier.Notify(ctx, 1, &m))
	require.Len(t, deliverer.previews, 1)
	assert.Equal(t, "On this day 1 year ago", deliverer.previews[0].Title)
	assert.InDelta(t, 2.5, deliverer.previews[0].Score, 1e-9)

	// same pair is throttled from now on
	ok, err = notifier.ShouldNotify(ctx, 1, &m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShouldNotifyDailyCap(t *testing.T) {
	ctx := context.Background()
	notifier, _, gdb := setupNotifier(t)

	for day := 0; day < 3; day++ {
		m := seedMemory(t, gdb, 1, targetDate.AddDate(0, 0, day), 2.5)
		require.NoError(t, notifier.Notify(ctx, 1, &m))
	}

	fourth := seedMemory(t, gdb, 1, targetDate.AddDate(0, 0, 3), 9.0)
	ok, err := notifier.ShouldNotify(ctx, 1, &fourth)
	require.NoError(t, err)
	assert.False(t, ok, "fourth notification of the day must be suppressed")
}

func TestRunDailyBatch(t *testing.T) {
	ctx := context.Background()
	notifier, deliverer, gdb := setupNotifier(t)

	seedUser(t, gdb, 1, true)
	seedUser(t, gdb, 2, false)

	seedPhoto(t, gdb, 1, time.Date(2022, 6, 15, 10, 0, 0, 0, time.UTC), 2, 1)

	result, err := notifier.RunDailyBatch(ctx, targetDate)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedUsers, "inactive users are skipped")
	assert.Equal(t, 1, result.MemoriesCreated)
	assert.Equal(t, 1, result.NotificationsSent)
	assert.Zero(t, result.Errors)

	require.Len(t, deliverer.users, 1)
	assert.Equal(t, uint64(1), deliverer.users[0])

	// a rerun notifies nobody twice
	result, err = notifier.RunDailyBatch(ctx, targetDate)
	require.NoError(t, err)
	assert.Zero(t, result.NotificationsSent)
	assert.Zero(t, result.MemoriesCreated)
}

func TestCleanupOld(t *testing.T) {
	ctx := context.Background()
	notifier, _, gdb := setupNotifier(t)

	now := time.Now().UTC()
	old := db.Memory{UserID: 1, TargetDate: targetDate, SignificanceScore: 2.0, CreatedAt: now.AddDate(0, 0, -400)}
	require.NoError(t, gdb.Create(&old).Error)
	recent := seedMemory(t, gdb, 1, targetDate.AddDate(0, 0, 1), 2.0)

	oldNote := db.MemoryNotification{UserID: 1, MemoryID: old.ID, SentAt: now.AddDate(0, 0, -400), NotificationType: "daily_memory"}
	require.NoError(t, gdb.Create(&oldNote).Error)
	recentNote := db.MemoryNotification{UserID: 1, MemoryID: recent.ID, NotificationType: "daily_memory"}
	require.NoError(t, gdb.Create(&recentNote).Error)

	result, err := notifier.CleanupOld(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.MemoriesDeleted)
	assert.Equal(t, int64(1), result.NotificationsDeleted)

	var memories, notes int64
	require.NoError(t, gdb.Model(&db.Memory{}).Count(&memories).Error)
	require.NoError(t, gdb.Model(&db.MemoryNotification{}).Count(&notes).Error)
	assert.Equal(t, int64(1), memories)
	assert.Equal(t, int64(1), notes)
}

func TestMarkNotificationClicked(t *testing.T) {
	ctx := context.Background()
	notifier, _, gdb := setupNotifier(t)

	m := seedMemory(t, gdb, 1, targetDate, 2.5)
	require.NoError(t, notifier.Notify(ctx, 1, &m))

	var note db.MemoryNotification
	require.NoError(t, gdb.First(&note).Error)
	require.Nil(t, note.ClickedAt)

	require.NoError(t, notifier.MarkNotificationClicked(ctx, note.ID, 1))
	require.NoError(t, gdb.First(&note, note.ID).Error)
	assert.NotNil(t, note.ClickedAt)
}
