package jobs

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

// Handler processes one claimed job. A non-nil error triggers the worker's
// retry policy until the job's MaxAttempts is exhausted.
type Handler func(ctx context.Context, job *Job) error

// Worker polls the queue and dispatches claimed jobs to registered handlers.
type Worker struct {
	ID           string
	Repo         *Repo
	Logger       *slog.Logger
	PollInterval time.Duration

	handlers map[string]Handler
}

// NewWorker creates a worker with a random identity.
func NewWorker(repo *Repo, logger *slog.Logger, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 800 * time.Millisecond
	}
	return &Worker{
		ID:           uuid.NewString(),
		Repo:         repo,
		Logger:       logger,
		PollInterval: pollInterval,
		handlers:     make(map[string]Handler),
	}
}

// Register binds a handler to a job type. Not safe to call after Run starts.
func (w *Worker) Register(jobType string, h Handler) {
	w.handlers[jobType] = h
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				job, err := w.Repo.Claim(w.ID)
				if err != nil {
					w.Logger.Error("job claim failed", "worker", w.ID, "err", err)
					break
				}
				if job == nil {
					break
				}
				w.Handle(ctx, job)
			}
		}
	}
}

// Handle dispatches a single claimed job. Exported so tests (and synchronous
// callers) can pump the queue without the polling loop.
func (w *Worker) Handle(ctx context.Context, job *Job) {
	h, ok := w.handlers[job.Type]
	if !ok {
		w.Logger.Error("unknown job type", "type", job.Type, "job_id", job.ID)
		_ = w.Repo.MarkFailed(job.ID, "unknown job type")
		return
	}

	if err := h(ctx, job); err != nil {
		w.retry(job, err)
		return
	}
	_ = w.Repo.MarkDone(job.ID)
}

// DrainDue claims and handles every job that is currently due. Used by tests
// and by callers that need a synchronous pump.
func (w *Worker) DrainDue(ctx context.Context) {
	for {
		job, err := w.Repo.Claim(w.ID)
		if err != nil || job == nil {
			return
		}
		w.Handle(ctx, job)
	}
}

func (w *Worker) retry(job *Job, cause error) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.Logger.Error("job failed terminally",
			"type", job.Type, "job_id", job.ID, "attempts", attempts, "err", cause)
		_ = w.Repo.MarkFailed(job.ID, cause.Error())
		return
	}

	sec := math.Min(60*math.Pow(2, float64(attempts)), 3600)
	next := w.Repo.Now().Add(time.Duration(sec) * time.Second)

	w.Logger.Warn("job attempt failed, retrying",
		"type", job.Type, "job_id", job.ID, "attempt", attempts, "next_run", next, "err", cause)
	_ = w.Repo.RetryLater(job.ID, attempts, next, cause.Error())
}
