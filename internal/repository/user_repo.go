package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
)

// UserRepository exposes the little this engine needs from the user store.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// ListActiveIDs returns the ids of all active users. Batch discovery and the
// notification pass iterate over this set.
func (r *UserRepository) ListActiveIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("active = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
