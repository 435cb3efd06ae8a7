package jobs

import "time"

// Job statuses.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusDone      = "DONE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Job is a queued unit of background work. Delivery is at-least-once: a
// worker that dies mid-job leaves a stale RUNNING row that gets requeued, so
// handlers must be idempotent.
type Job struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID uint64 `gorm:"index"`

	Type    string `gorm:"size:64;not null"`
	Payload []byte `gorm:"type:json"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"size:16;index;not null;default:PENDING"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:3"`

	LockedBy *string    `gorm:"size:64"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
