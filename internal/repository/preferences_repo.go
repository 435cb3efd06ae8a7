package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/db"
)

// PreferencesRepository provides data access for per-user memory preferences.
type PreferencesRepository struct {
	db *gorm.DB
}

// NewPreferencesRepository creates a new repository bound to the given DB connection.
func NewPreferencesRepository(database *gorm.DB) *PreferencesRepository {
	return &PreferencesRepository{db: database}
}

// DefaultPreferences returns the documented defaults applied on first read.
func DefaultPreferences(userID uint64) db.MemoryPreferences {
	return db.MemoryPreferences{
		UserID:               userID,
		NotificationsEnabled: true,
		Frequency:            db.FrequencyDaily,
		IncludePrivateAlbums: false,
		AutoGenerateReels:    true,
		FeatureEnabled:       true,
	}
}

// GetOrCreate returns the user's preferences, creating the row with defaults
// on first read. A concurrent first read loses the insert race benignly and
// re-reads the winner's row.
func (r *PreferencesRepository) GetOrCreate(ctx context.Context, userID uint64) (*db.MemoryPreferences, error) {
	var prefs db.MemoryPreferences
	err := r.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error
	if err == nil {
		return &prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	prefs = DefaultPreferences(userID)
	if err := r.db.WithContext(ctx).Create(&prefs).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = r.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error
		}
		if err != nil {
			return nil, err
		}
	}
	return &prefs, nil
}

// Get returns the user's preferences without creating them, or nil when the
// row does not exist. Read paths that must not write (the notification
// throttler) use this and fall back to defaults in memory.
func (r *PreferencesRepository) Get(ctx context.Context, userID uint64) (*db.MemoryPreferences, error) {
	var prefs db.MemoryPreferences
	err := r.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Update persists user-initiated preference changes.
func (r *PreferencesRepository) Update(ctx context.Context, prefs *db.MemoryPreferences) error {
	return r.db.WithContext(ctx).Save(prefs).Error
}
