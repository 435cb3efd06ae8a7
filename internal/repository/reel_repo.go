package repository

import (
	"time"

	"context"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
)

// ReelRepository provides data access for flashback reels.
//
// Status writes from the async generation path are guarded by the reel's
// Generation stamp: cancel and retry bump the stamp, so a stale job's update
// matches zero rows instead of overwriting a terminal state.
type ReelRepository struct {
	db *gorm.DB
}

// NewReelRepository creates a new repository bound to the given DB connection.
func NewReelRepository(database *gorm.DB) *ReelRepository {
	return &ReelRepository{db: database}
}

// Create persists a new reel.
func (r *ReelRepository) Create(ctx context.Context, reel *db.FlashbackReel) error {
	return r.db.WithContext(ctx).Create(reel).Error
}

// GetByID returns a reel by id.
func (r *ReelRepository) GetByID(ctx context.Context, id uint64) (*db.FlashbackReel, error) {
	var reel db.FlashbackReel
	if err := r.db.WithContext(ctx).First(&reel, id).Error; err != nil {
		return nil, err
	}
	return &reel, nil
}

// GetByIDForUser returns a reel by id scoped to its owner.
func (r *ReelRepository) GetByIDForUser(ctx context.Context, id, userID uint64) (*db.FlashbackReel, error) {
	var reel db.FlashbackReel
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&reel).Error
	if err != nil {
		return nil, err
	}
	return &reel, nil
}

// ListByUser returns a user's reels, newest first, optionally filtered by
// status. limit <= 0 falls back to 20.
func (r *ReelRepository) ListByUser(ctx context.Context, userID uint64, status string, limit int) ([]db.FlashbackReel, error) {
	if limit <= 0 {
		limit = 20
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var reels []db.FlashbackReel
	err := query.Find(&reels).Error
	return reels, err
}

// MarkProcessing transitions pending -> processing for the given generation.
// Returns false when the reel moved on (cancelled, retried or already
// picked up), in which case the job must stand down.
func (r *ReelRepository) MarkProcessing(ctx context.Context, id uint64, generation int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.FlashbackReel{}).
		Where("id = ? AND generation = ? AND status = ?", id, generation, db.ReelStatusPending).
		Update("status", db.ReelStatusProcessing)
	return res.RowsAffected > 0, res.Error
}

// MarkCompleted transitions processing -> completed for the given generation,
// storing the artifact reference and completion time. Returns false when the
// update lost to a cancel or retry.
func (r *ReelRepository) MarkCompleted(ctx context.Context, id uint64, generation int, artifactRef string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.FlashbackReel{}).
		Where("id = ? AND generation = ? AND status = ?", id, generation, db.ReelStatusProcessing).
		Updates(map[string]any{
			"status":        db.ReelStatusCompleted,
			"artifact_ref":  artifactRef,
			"error_message": "",
			"completed_at":  time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}

// MarkFailed transitions pending|processing -> failed for the given
// generation, recording the error message. CompletedAt stays null.
func (r *ReelRepository) MarkFailed(ctx context.Context, id uint64, generation int, message string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.FlashbackReel{}).
		Where("id = ? AND generation = ? AND status IN ?", id, generation,
			[]string{db.ReelStatusPending, db.ReelStatusProcessing}).
		Updates(map[string]any{
			"status":        db.ReelStatusFailed,
			"error_message": message,
		})
	return res.RowsAffected > 0, res.Error
}

// ResetForRetry transitions failed -> pending and bumps the generation stamp
// so any stale in-flight job is fenced off. Returns the new generation.
func (r *ReelRepository) ResetForRetry(ctx context.Context, id uint64) (int, bool, error) {
	var generation int
	var reset bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reel db.FlashbackReel
		if err := tx.First(&reel, id).Error; err != nil {
			return err
		}
		if reel.Status != db.ReelStatusFailed {
			return nil
		}

		generation = reel.Generation + 1
		res := tx.Model(&db.FlashbackReel{}).
			Where("id = ? AND status = ?", id, db.ReelStatusFailed).
			Updates(map[string]any{
				"status":        db.ReelStatusPending,
				"error_message": "",
				"generation":    generation,
			})
		reset = res.RowsAffected > 0
		return res.Error
	})
	return generation, reset, err
}

// Cancel transitions pending|processing -> failed with the cancellation
// reason and bumps the generation stamp. An external render already in
// flight is not interrupted; its late completion simply no longer matches.
func (r *ReelRepository) Cancel(ctx context.Context, id, userID uint64, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.FlashbackReel{}).
		Where("id = ? AND user_id = ? AND status IN ?", id, userID,
			[]string{db.ReelStatusPending, db.ReelStatusProcessing}).
		Updates(map[string]any{
			"status":        db.ReelStatusFailed,
			"error_message": reason,
			"generation":    gorm.Expr("generation + 1"),
		})
	return res.RowsAffected > 0, res.Error
}

// SetShareRef stores the best-effort share link minted after completion.
func (r *ReelRepository) SetShareRef(ctx context.Context, id uint64, shareRef string) error {
	return r.db.WithContext(ctx).
		Model(&db.FlashbackReel{}).
		Where("id = ?", id).
		Update("share_ref", shareRef).Error
}

// Delete removes a reel scoped to its owner. Returns false when the reel did
// not exist for that user.
func (r *ReelRepository) Delete(ctx context.Context, id, userID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&db.FlashbackReel{})
	return res.RowsAffected > 0, res.Error
}
