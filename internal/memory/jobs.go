package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/jobs"
)

// Queue job types owned by this package.
const (
	// JobTypeDailyBatch runs discovery plus notification for all active users.
	JobTypeDailyBatch = "memory.daily_batch"
	// JobTypeCleanup enforces the retention window.
	JobTypeCleanup = "memory.cleanup"
)

type dailyBatchPayload struct {
	TargetDate string `json:"target_date"`
}

// EnqueueDailyBatch schedules a discovery-and-notify run for the given date.
func (n *Notifier) EnqueueDailyBatch(targetDate time.Time, maxAttempts int) error {
	payload, err := json.Marshal(dailyBatchPayload{
		TargetDate: db.DateOnly(targetDate).Format("2006-01-02"),
	})
	if err != nil {
		return err
	}
	return n.appCtx.Queue.Enqueue(0, JobTypeDailyBatch, payload, maxAttempts)
}

// EnqueueCleanup schedules a retention sweep.
func (n *Notifier) EnqueueCleanup(maxAttempts int) error {
	return n.appCtx.Queue.Enqueue(0, JobTypeCleanup, nil, maxAttempts)
}

// RegisterJobs binds the batch job handlers onto a worker.
func (n *Notifier) RegisterJobs(w *jobs.Worker) {
	w.Register(JobTypeDailyBatch, n.handleDailyBatch)
	w.Register(JobTypeCleanup, n.handleCleanup)
}

func (n *Notifier) handleDailyBatch(ctx context.Context, job *jobs.Job) error {
	var p dailyBatchPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}
	targetDate, err := time.Parse("2006-01-02", p.TargetDate)
	if err != nil {
		return err
	}
	_, err = n.RunDailyBatch(ctx, targetDate)
	return err
}

func (n *Notifier) handleCleanup(ctx context.Context, job *jobs.Job) error {
	_, err := n.CleanupOld(ctx)
	return err
}
