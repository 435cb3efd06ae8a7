package db

import (
	"time"
)

// Reel lifecycle states. Transitions are bounded: pending -> processing ->
// {completed | failed}; failed -> pending only via retry; pending|processing
// -> failed via cancel.
const (
	ReelStatusPending    = "pending"
	ReelStatusProcessing = "processing"
	ReelStatusCompleted  = "completed"
	ReelStatusFailed     = "failed"
)

// Supported reel themes. Unknown themes fall back to classic.
const (
	ThemeClassic   = "classic"
	ThemeModern    = "modern"
	ThemeVintage   = "vintage"
	ThemeCinematic = "cinematic"
)

// Engagement interaction types. The tracker rejects anything else.
const (
	InteractionView     = "view"
	InteractionShare    = "share"
	InteractionLike     = "like"
	InteractionDownload = "download"
)

// Notification frequencies for MemoryPreferences.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// User table. Only Active matters to this engine (batch discovery runs over
// active users); the rest exists for seeding and ownership scoping.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Photo is the read-only projection this engine consumes. The photo service
// owns the row and keeps AlbumCount/ShareCount up to date; nothing here ever
// writes to it.
//
// TakenAt is nullable: scans without EXIF capture dates fall back to
// CreatedAt for grouping and playback ordering.
type Photo struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement"`
	UserID       uint64     `gorm:"not null;index:idx_user_taken,priority:1"`
	TakenAt      *time.Time `gorm:"index:idx_user_taken,priority:2"`
	Width        int
	Height       int
	LocationText string `gorm:"size:255"`
	AlbumCount   int    `gorm:"not null;default:0"`
	ShareCount   int    `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// BestDate returns the capture date, falling back to the upload date when
// the photo carries no EXIF timestamp.
func (p *Photo) BestDate() time.Time {
	if p.TakenAt != nil {
		return *p.TakenAt
	}
	return p.CreatedAt
}

// Memory is a discovered "on this day" photo cluster.
//
// Invariant: at most one row per (user_id, target_date), enforced by
// uniq_user_target_date. Discovery treats an insert conflict as a benign
// race and re-reads the winner's row.
type Memory struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement"`
	UserID            uint64    `gorm:"not null;uniqueIndex:uniq_user_target_date,priority:1"`
	TargetDate        time.Time `gorm:"type:date;not null;uniqueIndex:uniq_user_target_date,priority:2"`
	SignificanceScore float64   `gorm:"not null;default:0;index"`
	EngagementCount   int       `gorm:"not null;default:0"`
	LastViewedAt      *time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime;index"`
}

// MemoryPhoto links a memory to one of its photos.
//
// Rows are created atomically with the memory, ordered by descending
// significance (ties keep insertion order), and never mutated afterwards.
type MemoryPhoto struct {
	MemoryID          uint64  `gorm:"primaryKey"`
	PhotoID           uint64  `gorm:"primaryKey"`
	SignificanceScore float64 `gorm:"not null;default:0"`
	DisplayOrder      int     `gorm:"column:display_order;not null;default:0;index:idx_memory_order"`
	AddedAt           time.Time `gorm:"autoCreateTime"`
}

// FlashbackReel is a derived, time-ordered photo selection destined for an
// external render. PhotoIDs preserves the chronological playback order.
//
// Generation is bumped by cancel and retry; the async job compares it before
// every status write so a stale in-flight render cannot overwrite a terminal
// state.
type FlashbackReel struct {
	ID              uint64   `gorm:"primaryKey;autoIncrement"`
	UserID          uint64   `gorm:"not null;index:idx_user_created,priority:1"`
	Title           string   `gorm:"size:200;not null"`
	Theme           string   `gorm:"size:50;not null;default:classic"`
	DurationSeconds int      `gorm:"not null;default:30"`
	Status          string   `gorm:"size:20;not null;default:pending;index"`
	StartDate       time.Time `gorm:"type:date;not null"`
	EndDate         time.Time `gorm:"type:date;not null"`
	PhotoIDs        []uint64 `gorm:"serializer:json"`
	PhotoCount      int      `gorm:"not null;default:0"`
	ArtifactRef     string   `gorm:"size:512"`
	ShareRef        string   `gorm:"size:512"`
	ErrorMessage    string   `gorm:"type:text"`
	Generation      int      `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_user_created,priority:2"`
	CompletedAt     *time.Time
}

// EngagementEvent is an append-only interaction record against a memory.
// Memory.EngagementCount is always the count of these rows.
type EngagementEvent struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	MemoryID        uint64    `gorm:"not null;index:idx_memory_ts,priority:1"`
	InteractionType string    `gorm:"size:20;not null;index"`
	Timestamp       time.Time `gorm:"autoCreateTime;index:idx_memory_ts,priority:2"`
	IPAddress       string    `gorm:"size:45"`
	UserAgent       string    `gorm:"type:text"`
}

// MemoryNotification records that a user was notified about a memory.
// At most one row per (user_id, memory_id); only ClickedAt is ever updated.
type MemoryNotification struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	UserID           uint64    `gorm:"not null;uniqueIndex:uniq_user_memory,priority:1;index:idx_user_sent,priority:1"`
	MemoryID         uint64    `gorm:"not null;uniqueIndex:uniq_user_memory,priority:2"`
	SentAt           time.Time `gorm:"autoCreateTime;index:idx_user_sent,priority:2"`
	ClickedAt        *time.Time
	NotificationType string `gorm:"size:50;not null;default:daily_memory"`
}

// DateRange is an excluded span inside MemoryPreferences.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MemoryPreferences holds per-user memory settings, created lazily on first
// read. Defaults live in the preferences repository, not in column defaults,
// so an explicit false survives updates.
type MemoryPreferences struct {
	UserID               uint64 `gorm:"primaryKey"`
	NotificationsEnabled bool
	Frequency            string `gorm:"size:20"`
	IncludePrivateAlbums bool
	AutoGenerateReels    bool
	ExcludedDateRanges   []DateRange `gorm:"serializer:json"`
	ExcludedAlbumIDs     []uint64    `gorm:"serializer:json"`
	FeatureEnabled       bool
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

// DateOnly truncates a timestamp to its calendar date in UTC. Target dates
// and reel ranges are always stored and compared this way.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
