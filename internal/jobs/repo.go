package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repo is the DB-backed job queue. It implements the enqueue side consumed
// by the services and the claim/ack side consumed by workers.
type Repo struct {
	DB *gorm.DB

	// Now is injectable for deterministic scheduling in tests.
	Now func() time.Time
}

// NewRepo creates a queue over the given DB and migrates the jobs table.
func NewRepo(database *gorm.DB) (*Repo, error) {
	if err := database.AutoMigrate(&Job{}); err != nil {
		return nil, err
	}
	return &Repo{DB: database, Now: func() time.Time { return time.Now().UTC() }}, nil
}

// Enqueue schedules a job to run immediately.
func (r *Repo) Enqueue(userID uint64, jobType string, payload []byte, maxAttempts int) error {
	return r.EnqueueDelayed(userID, jobType, payload, 0, maxAttempts)
}

// EnqueueDelayed schedules a job to run after the given delay.
func (r *Repo) EnqueueDelayed(userID uint64, jobType string, payload []byte, delay time.Duration, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	j := Job{
		UserID:      userID,
		Type:        jobType,
		Payload:     payload,
		RunAt:       r.Now().Add(delay),
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
	}
	return r.DB.Create(&j).Error
}

// Claim atomically picks one due job and marks it RUNNING. Returns nil when
// nothing is due. Stuck RUNNING jobs (worker died) are requeued after five
// minutes.
func (r *Repo) Claim(workerID string) (*Job, error) {
	now := r.Now()
	var job Job
	claimed := false

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs (safety against dead workers)
		tx.Model(&Job{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?",
				StatusRunning, now.Add(-5*time.Minute)).
			Updates(map[string]any{
				"status":    StatusPending,
				"locked_by": nil,
				"locked_at": nil,
			})

		err := tx.Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			job.ID = 0
			return nil
		}
		if err != nil {
			return err
		}

		// conditional update so two workers cannot double-claim
		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, StatusPending).
			Updates(map[string]any{
				"status":    StatusRunning,
				"locked_by": workerID,
				"locked_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job.ID == 0 || !claimed {
		return nil, nil
	}

	job.Status = StatusRunning
	return &job, nil
}

// MarkDone finishes a job successfully.
func (r *Repo) MarkDone(id uint64) error {
	return r.DB.Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": StatusDone, "locked_by": nil, "locked_at": nil}).Error
}

// MarkFailed finishes a job terminally with an error message.
func (r *Repo) MarkFailed(id uint64, errMsg string) error {
	return r.DB.Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusFailed,
			"last_error": errMsg,
			"locked_by":  nil,
			"locked_at":  nil,
		}).Error
}

// RetryLater reschedules a failed attempt.
func (r *Repo) RetryLater(id uint64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"run_at":     runAt,
			"locked_by":  nil,
			"locked_at":  nil,
			"last_error": errMsg,
		}).Error
}
