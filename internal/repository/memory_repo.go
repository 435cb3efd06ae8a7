package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
)

// MemoryRepository provides data access for memories, their photo links and
// engagement events.
type MemoryRepository struct {
	db *gorm.DB
}

// NewMemoryRepository creates a new repository bound to the given DB connection.
func NewMemoryRepository(database *gorm.DB) *MemoryRepository {
	return &MemoryRepository{db: database}
}

// GetByUserAndDate returns the memory for (userID, targetDate), or nil when
// none exists.
func (r *MemoryRepository) GetByUserAndDate(ctx context.Context, userID uint64, targetDate time.Time) (*db.Memory, error) {
	var memory db.Memory
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_date = ?", userID, db.DateOnly(targetDate)).
		First(&memory).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &memory, nil
}

// GetByID returns a memory by id.
func (r *MemoryRepository) GetByID(ctx context.Context, id uint64) (*db.Memory, error) {
	var memory db.Memory
	if err := r.db.WithContext(ctx).First(&memory, id).Error; err != nil {
		return nil, err
	}
	return &memory, nil
}

// GetByIDForUser returns a memory by id scoped to its owner.
func (r *MemoryRepository) GetByIDForUser(ctx context.Context, id, userID uint64) (*db.Memory, error) {
	var memory db.Memory
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&memory).Error
	if err != nil {
		return nil, err
	}
	return &memory, nil
}

// CreateWithPhotos inserts a memory and its photo links in one transaction.
//
// Behavior:
//   - Links are written in slice order; DisplayOrder is assigned 0..n-1, so
//     the caller's descending-score order is preserved exactly.
//   - A duplicate (user_id, target_date) insert is a benign race: the
//     transaction is rolled back and the winner's row is returned instead,
//     with created=false.
func (r *MemoryRepository) CreateWithPhotos(
	ctx context.Context,
	memory *db.Memory,
	links []db.MemoryPhoto,
) (*db.Memory, bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(memory).Error; err != nil {
			return err
		}
		for i := range links {
			links[i].MemoryID = memory.ID
			links[i].DisplayOrder = i
		}
		if len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, getErr := r.GetByUserAndDate(ctx, memory.UserID, memory.TargetDate)
		if getErr != nil {
			return nil, false, getErr
		}
		if existing != nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return memory, true, nil
}

// ListByIDs returns memories for the given ids.
func (r *MemoryRepository) ListByIDs(ctx context.Context, ids []uint64) ([]db.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var memories []db.Memory
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&memories).Error
	return memories, err
}

// ListPhotoLinks returns a memory's photo links in display order, which by
// construction is descending significance with insertion order breaking ties.
func (r *MemoryRepository) ListPhotoLinks(ctx context.Context, memoryID uint64) ([]db.MemoryPhoto, error) {
	var links []db.MemoryPhoto
	err := r.db.WithContext(ctx).
		Where("memory_id = ?", memoryID).
		Order("display_order ASC").
		Find(&links).Error
	return links, err
}

// ListPhotos returns a memory's photos in display order.
func (r *MemoryRepository) ListPhotos(ctx context.Context, memoryID uint64) ([]db.Photo, error) {
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Joins("JOIN memory_photos mp ON mp.photo_id = photos.id").
		Where("mp.memory_id = ?", memoryID).
		Order("mp.display_order ASC").
		Find(&photos).Error
	return photos, err
}

// AppendEngagement inserts an engagement event and refreshes the memory's
// rolling counters: engagement_count becomes the event count for the memory
// and last_viewed_at is set to now.
func (r *MemoryRepository) AppendEngagement(ctx context.Context, event *db.EngagementEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&db.EngagementEvent{}).
			Where("memory_id = ?", event.MemoryID).
			Count(&count).Error; err != nil {
			return err
		}

		return tx.Model(&db.Memory{}).
			Where("id = ?", event.MemoryID).
			Updates(map[string]any{
				"engagement_count": count,
				"last_viewed_at":   time.Now().UTC(),
			}).Error
	})
}

// EngagementByType returns event counts per interaction type for a user's
// memories since the given time.
func (r *MemoryRepository) EngagementByType(ctx context.Context, userID uint64, since time.Time) (map[string]int64, error) {
	type row struct {
		InteractionType string
		Count           int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&db.EngagementEvent{}).
		Select("interaction_type, COUNT(*) as count").
		Joins("JOIN memories m ON m.id = engagement_events.memory_id").
		Where("m.user_id = ? AND engagement_events.timestamp >= ?", userID, since).
		Group("interaction_type").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int64, len(rows))
	for _, r := range rows {
		byType[r.InteractionType] = r.Count
	}
	return byType, nil
}

// CountEngagements counts events against a user's memories since the given time.
func (r *MemoryRepository) CountEngagements(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.EngagementEvent{}).
		Joins("JOIN memories m ON m.id = engagement_events.memory_id").
		Where("m.user_id = ? AND engagement_events.timestamp >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// MemoryStatsSince returns the memory count and mean significance score for
// memories created since the given time.
func (r *MemoryRepository) MemoryStatsSince(ctx context.Context, userID uint64, since time.Time) (int64, float64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&db.Memory{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	var avg float64
	err := r.db.WithContext(ctx).
		Model(&db.Memory{}).
		Select("AVG(significance_score)").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Scan(&avg).Error
	return count, avg, err
}

// ListSignificantForDate returns a user's memories for a target date with a
// significance score at or above the threshold. Used by the notification pass.
func (r *MemoryRepository) ListSignificantForDate(
	ctx context.Context,
	userID uint64,
	targetDate time.Time,
	minScore float64,
) ([]db.Memory, error) {
	var memories []db.Memory
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND target_date = ? AND significance_score >= ?",
			userID, db.DateOnly(targetDate), minScore).
		Find(&memories).Error
	return memories, err
}

// DeleteOlderThan removes memories created before the cutoff together with
// their photo links and engagement events. Returns the number of memories
// removed.
func (r *MemoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint64
		if err := tx.Model(&db.Memory{}).
			Where("created_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("memory_id IN ?", ids).Delete(&db.MemoryPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Where("memory_id IN ?", ids).Delete(&db.EngagementEvent{}).Error; err != nil {
			return err
		}

		res := tx.Where("id IN ?", ids).Delete(&db.Memory{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
