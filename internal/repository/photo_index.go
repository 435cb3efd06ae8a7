package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
)

// PhotoIndex provides read-only access to the photo store. This engine never
// writes photos; album and share counts are projections maintained by the
// photo service.
type PhotoIndex struct {
	db *gorm.DB
}

// NewPhotoIndex creates a read-only photo index bound to the given DB connection.
func NewPhotoIndex(database *gorm.DB) *PhotoIndex {
	return &PhotoIndex{db: database}
}

// calendarExprs returns SQL expressions extracting month, day and year from
// taken_at for the active dialect. MySQL in production, SQLite in tests.
func (r *PhotoIndex) calendarExprs() (month, day, year string) {
	if r.db.Dialector.Name() == "sqlite" {
		return "CAST(strftime('%m', taken_at) AS INTEGER)",
			"CAST(strftime('%d', taken_at) AS INTEGER)",
			"CAST(strftime('%Y', taken_at) AS INTEGER)"
	}
	return "MONTH(taken_at)", "DAY(taken_at)", "YEAR(taken_at)"
}

// ListByCalendarDate returns photos taken on the given month/day in any year
// strictly before beforeYear, newest first.
//
// Behavior:
//   - Photos without a capture timestamp are skipped (no anniversary to match).
//   - Capped at limit rows to bound scoring work.
//
// Example:
//
//	idx.ListByCalendarDate(ctx, 42, 6, 15, 2024, 50) // June 15 anniversaries before 2024
func (r *PhotoIndex) ListByCalendarDate(
	ctx context.Context,
	userID uint64,
	month, day, beforeYear int,
	limit int,
) ([]db.Photo, error) {
	monthExpr, dayExpr, yearExpr := r.calendarExprs()

	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND taken_at IS NOT NULL", userID).
		Where(monthExpr+" = ? AND "+dayExpr+" = ? AND "+yearExpr+" < ?", month, day, beforeYear).
		Order("taken_at DESC").
		Limit(limit).
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// ListByDateRange returns photos captured within [start, end] (calendar
// dates, inclusive), oldest first. Photos without a capture timestamp are
// excluded.
func (r *PhotoIndex) ListByDateRange(
	ctx context.Context,
	userID uint64,
	start, end time.Time,
) ([]db.Photo, error) {
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND taken_at >= ? AND taken_at < ?",
			userID, db.DateOnly(start), db.DateOnly(end).AddDate(0, 0, 1)).
		Order("taken_at ASC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}

// CountByDateRange counts photos captured within [start, end] inclusive.
func (r *PhotoIndex) CountByDateRange(
	ctx context.Context,
	userID uint64,
	start, end time.Time,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Photo{}).
		Where("user_id = ? AND taken_at >= ? AND taken_at < ?",
			userID, db.DateOnly(start), db.DateOnly(end).AddDate(0, 0, 1)).
		Count(&count).Error
	return count, err
}

// ListByIDs returns the photos for the given ids, preserving the input order.
// Used to hydrate a reel's chronological photo list.
func (r *PhotoIndex) ListByIDs(ctx context.Context, ids []uint64) ([]db.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var photos []db.Photo
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&photos).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint64]db.Photo, len(photos))
	for _, p := range photos {
		byID[p.ID] = p
	}

	ordered := make([]db.Photo, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}
