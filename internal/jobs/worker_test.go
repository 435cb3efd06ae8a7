package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/photovault/memories/internal/jobs"
)

func setupQueue(t *testing.T) *jobs.Repo {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	repo, err := jobs.NewRepo(dbase)
	require.NoError(t, err)
	return repo
}

func discardWorker(repo *jobs.Repo) *jobs.Worker {
	return jobs.NewWorker(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Millisecond)
}

func TestEnqueueAndClaim(t *testing.T) {
	repo := setupQueue(t)

	base := time.Now().UTC().Truncate(time.Second)
	cur := base
	repo.Now = func() time.Time { return cur }

	require.NoError(t, repo.Enqueue(1, "test.job", []byte(`{}`), 3))

	job, err := repo.Claim("worker-a")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "test.job", job.Type)
	assert.Equal(t, jobs.StatusRunning, job.Status)

	// already claimed
	job, err = repo.Claim("worker-b")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDelayedJobNotDueYet(t *testing.T) {
	repo := setupQueue(t)

	base := time.Now().UTC().Truncate(time.Second)
	cur := base
	repo.Now = func() time.Time { return cur }

	require.NoError(t, repo.EnqueueDelayed(1, "test.job", nil, time.Hour, 3))

	job, err := repo.Claim("worker-a")
	require.NoError(t, err)
	assert.Nil(t, job)

	cur = base.Add(time.Hour + time.Second)
	job, err = repo.Claim("worker-a")
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestHandleSuccessMarksDone(t *testing.T) {
	ctx := context.Background()
	repo := setupQueue(t)
	worker := discardWorker(repo)

	handled := 0
	worker.Register("test.job", func(ctx context.Context, job *jobs.Job) error {
		handled++
		return nil
	})

	require.NoError(t, repo.Enqueue(1, "test.job", nil, 3))
	worker.DrainDue(ctx)
	assert.Equal(t, 1, handled)

	var job jobs.Job
	require.NoError(t, repo.DB.First(&job).Error)
	assert.Equal(t, jobs.StatusDone, job.Status)
	assert.Nil(t, job.LockedBy)
}

func TestHandleRetryBackoffThenTerminalFailure(t *testing.T) {
	ctx := context.Background()
	repo := setupQueue(t)

	base := time.Now().UTC().Truncate(time.Second)
	cur := base
	repo.Now = func() time.Time { return cur }

	worker := discardWorker(repo)
	attempts := 0
	worker.Register("test.job", func(ctx context.Context, job *jobs.Job) error {
		attempts++
		return errors.New("transient")
	})

	require.NoError(t, repo.Enqueue(1, "test.job", nil, 2))

	worker.DrainDue(ctx)
	assert.Equal(t, 1, attempts)

	var job jobs.Job
	require.NoError(t, repo.DB.First(&job).Error)
	assert.Equal(t, jobs.StatusPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.RunAt.After(base.Add(time.Minute)), "backoff pushes the next run out")

	// second attempt exhausts MaxAttempts
	cur = job.RunAt.Add(time.Second)
	worker.DrainDue(ctx)
	assert.Equal(t, 2, attempts)

	require.NoError(t, repo.DB.First(&job, job.ID).Error)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "transient", *job.LastError)
}

func TestUnknownJobTypeFailsTerminally(t *testing.T) {
	ctx := context.Background()
	repo := setupQueue(t)
	worker := discardWorker(repo)

	require.NoError(t, repo.Enqueue(1, "no.such.type", nil, 3))
	worker.DrainDue(ctx)

	var job jobs.Job
	require.NoError(t, repo.DB.First(&job).Error)
	assert.Equal(t, jobs.StatusFailed, job.Status)
}

func TestStuckRunningJobRequeued(t *testing.T) {
	repo := setupQueue(t)

	base := time.Now().UTC().Truncate(time.Second)
	repo.Now = func() time.Time { return base }

	lockedAt := base.Add(-10 * time.Minute)
	worker := "dead-worker"
	stuck := jobs.Job{
		Type:        "test.job",
		RunAt:       lockedAt,
		Status:      jobs.StatusRunning,
		MaxAttempts: 3,
		LockedBy:    &worker,
		LockedAt:    &lockedAt,
	}
	require.NoError(t, repo.DB.Create(&stuck).Error)

	job, err := repo.Claim("worker-a")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, stuck.ID, job.ID)
}
