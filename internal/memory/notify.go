package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/photovault/memories/internal/app"
	"github.com/photovault/memories/internal/apperr"
	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/repository"
)

// Notification policy.
const (
	// NotificationSignificanceMin gates which memories are worth a push.
	NotificationSignificanceMin = 2.0
	// MaxNotificationsPerDay caps per-user notifications between UTC midnights.
	MaxNotificationsPerDay = 3
	// RetentionDays is how long memories and notification records are kept.
	RetentionDays = 365
)

// NotificationPreview is the payload handed to the external deliverer.
type NotificationPreview struct {
	Title      string    `json:"title"`
	MemoryDate time.Time `json:"memory_date"`
	PhotoCount int       `json:"photo_count"`
	Score      float64   `json:"significance_score"`
	PhotoIDs   []uint64  `json:"preview_photo_ids"`
}

func yearsAgoTitle(years int) string {
	if years == 1 {
		return "On this day 1 year ago"
	}
	return fmt.Sprintf("On this day %d years ago", years)
}

// Deliverer performs the actual email/push delivery. External; best-effort.
type Deliverer interface {
	Deliver(ctx context.Context, userID uint64, memoryID uint64, preview NotificationPreview) error
}

// Notifier decides whether a discovered memory should reach the user and
// runs the daily batch across all active users.
type Notifier struct {
	appCtx        *app.AppContext
	engine        *Engine
	memories      *repository.MemoryRepository
	notifications *repository.NotificationRepository
	prefs         *repository.PreferencesRepository
	users         *repository.UserRepository
	deliverer     Deliverer

	Now func() time.Time
}

// NewNotifier creates a notifier sharing the engine's repositories.
func NewNotifier(appCtx *app.AppContext, engine *Engine, deliverer Deliverer) *Notifier {
	return &Notifier{
		appCtx:        appCtx,
		engine:        engine,
		memories:      repository.NewMemoryRepository(appCtx.DB),
		notifications: repository.NewNotificationRepository(appCtx.DB),
		prefs:         repository.NewPreferencesRepository(appCtx.DB),
		users:         repository.NewUserRepository(appCtx.DB),
		deliverer:     deliverer,
		Now:           engine.Now,
	}
}

// ShouldNotify applies the throttle rules for one (user, memory) pair:
// preferences must allow it, the pair must be un-notified, the user must be
// under the daily cap (UTC midnight boundary), and the memory must clear the
// significance gate. Absent preferences count as enabled.
func (n *Notifier) ShouldNotify(ctx context.Context, userID uint64, memory *db.Memory) (bool, error) {
	prefs, err := n.prefs.Get(ctx, userID)
	if err != nil {
		return false, apperr.Map(err)
	}
	if prefs != nil && (!prefs.NotificationsEnabled || !prefs.FeatureEnabled) {
		return false, nil
	}

	exists, err := n.notifications.Exists(ctx, userID, memory.ID)
	if err != nil {
		return false, apperr.Map(err)
	}
	if exists {
		return false, nil
	}

	midnight := db.DateOnly(n.Now())
	sentToday, err := n.notifications.CountSentSince(ctx, userID, midnight)
	if err != nil {
		return false, apperr.Map(err)
	}
	if sentToday >= MaxNotificationsPerDay {
		return false, nil
	}

	if memory.SignificanceScore < NotificationSignificanceMin {
		return false, nil
	}

	return true, nil
}

// Notify records the notification and hands the preview to the deliverer.
// The record is written first: delivery is at-most-once per (user, memory),
// and a delivery failure is logged, not retried.
func (n *Notifier) Notify(ctx context.Context, userID uint64, memory *db.Memory) error {
	record := &db.MemoryNotification{
		UserID:           userID,
		MemoryID:         memory.ID,
		NotificationType: "daily_memory",
	}
	if err := n.notifications.Create(ctx, record); err != nil {
		return apperr.Map(err)
	}

	preview, err := n.preview(ctx, memory)
	if err != nil {
		n.appCtx.Logger.Warn("notification preview failed", "memory_id", memory.ID, "err", err)
		return nil
	}

	if n.deliverer != nil {
		if err := n.deliverer.Deliver(ctx, userID, memory.ID, preview); err != nil {
			n.appCtx.Logger.Warn("notification delivery failed",
				"user_id", userID, "memory_id", memory.ID, "err", err)
		}
	}
	return nil
}

// preview builds the user-facing summary: "On this day N years ago" plus the
// first few photos.
func (n *Notifier) preview(ctx context.Context, memory *db.Memory) (NotificationPreview, error) {
	links, err := n.memories.ListPhotoLinks(ctx, memory.ID)
	if err != nil {
		return NotificationPreview{}, err
	}

	previewIDs := make([]uint64, 0, 3)
	for _, l := range links {
		previewIDs = append(previewIDs, l.PhotoID)
		if len(previewIDs) == 3 {
			break
		}
	}

	yearsAgo := int(n.Now().Sub(memory.TargetDate).Hours() / 24 / 365)
	return NotificationPreview{
		Title:      yearsAgoTitle(yearsAgo),
		MemoryDate: memory.TargetDate,
		PhotoCount: len(links),
		Score:      memory.SignificanceScore,
		PhotoIDs:   previewIDs,
	}, nil
}

// BatchResult summarizes a batch discovery or notification run.
type BatchResult struct {
	ProcessedUsers    int `json:"processed_users"`
	MemoriesCreated   int `json:"memories_created"`
	NotificationsSent int `json:"notifications_sent"`
	Skipped           int `json:"skipped"`
	Errors            int `json:"errors"`
}

// RunDailyBatch discovers today's memories for every active user, then runs
// the throttle + delivery pass over the significant ones. Per-user failures
// are counted and skipped, never fatal to the batch.
func (n *Notifier) RunDailyBatch(ctx context.Context, targetDate time.Time) (*BatchResult, error) {
	targetDate = db.DateOnly(targetDate)

	userIDs, err := n.users.ListActiveIDs(ctx)
	if err != nil {
		return nil, apperr.Map(err)
	}

	result := &BatchResult{}
	for _, userID := range userIDs {
		result.ProcessedUsers++

		existing, err := n.memories.GetByUserAndDate(ctx, userID, targetDate)
		if err != nil {
			result.Errors++
			continue
		}

		memory, err := n.engine.Discover(ctx, userID, targetDate)
		if err != nil {
			n.appCtx.Logger.Error("batch discovery failed", "user_id", userID, "err", err)
			result.Errors++
			continue
		}
		if memory != nil && existing == nil {
			result.MemoriesCreated++
		}

		significant, err := n.memories.ListSignificantForDate(ctx, userID, targetDate, NotificationSignificanceMin)
		if err != nil {
			result.Errors++
			continue
		}

		for i := range significant {
			ok, err := n.ShouldNotify(ctx, userID, &significant[i])
			if err != nil {
				result.Errors++
				continue
			}
			if !ok {
				result.Skipped++
				continue
			}
			if err := n.Notify(ctx, userID, &significant[i]); err != nil {
				result.Errors++
				continue
			}
			result.NotificationsSent++
		}
	}

	n.appCtx.Logger.Info("daily memory batch completed",
		"users", result.ProcessedUsers,
		"memories", result.MemoriesCreated,
		"notifications", result.NotificationsSent,
		"skipped", result.Skipped,
		"errors", result.Errors)
	return result, nil
}

// CleanupResult summarizes a retention run.
type CleanupResult struct {
	MemoriesDeleted      int64 `json:"memories_deleted"`
	NotificationsDeleted int64 `json:"notifications_deleted"`
}

// CleanupOld deletes memories and notification records older than the
// retention window. Runs weekly.
func (n *Notifier) CleanupOld(ctx context.Context) (*CleanupResult, error) {
	cutoff := n.Now().AddDate(0, 0, -RetentionDays)

	memories, err := n.memories.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, apperr.Map(err)
	}

	notifications, err := n.notifications.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, apperr.Map(err)
	}

	result := &CleanupResult{MemoriesDeleted: memories, NotificationsDeleted: notifications}
	n.appCtx.Logger.Info("memory retention cleanup completed",
		"memories_deleted", memories, "notifications_deleted", notifications)
	return result, nil
}

// MarkNotificationClicked stamps ClickedAt on a delivered notification.
func (n *Notifier) MarkNotificationClicked(ctx context.Context, notificationID, userID uint64) error {
	return apperr.Map(n.notifications.MarkClicked(ctx, notificationID, userID))
}
