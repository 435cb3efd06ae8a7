package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
)

// NotificationRepository provides data access for memory notification records.
type NotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new repository bound to the given DB connection.
func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

// Exists reports whether a notification was already recorded for
// (userID, memoryID).
func (r *NotificationRepository) Exists(ctx context.Context, userID, memoryID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.MemoryNotification{}).
		Where("user_id = ? AND memory_id = ?", userID, memoryID).
		Count(&count).Error
	return count > 0, err
}

// CountSentSince counts notifications sent to the user at or after the given
// time. Used to enforce the daily cap.
func (r *NotificationRepository) CountSentSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.MemoryNotification{}).
		Where("user_id = ? AND sent_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// Create records a sent notification. The (user_id, memory_id) unique index
// backs the at-most-once invariant.
func (r *NotificationRepository) Create(ctx context.Context, notification *db.MemoryNotification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// MarkClicked stamps ClickedAt on a user's notification.
func (r *NotificationRepository) MarkClicked(ctx context.Context, id, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.MemoryNotification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("clicked_at", time.Now().UTC()).Error
}

// DeleteOlderThan removes notification records sent before the cutoff.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("sent_at < ?", cutoff).
		Delete(&db.MemoryNotification{})
	return res.RowsAffected, res.Error
}
