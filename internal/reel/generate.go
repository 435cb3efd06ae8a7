package reel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/jobs"
)

// JobTypeGenerate is the queue job type for reel video generation.
const JobTypeGenerate = "reel.generate"

// maxGenerateRetries is how many automatic re-runs a failed render gets
// before the reel stays failed and only a manual retry can revive it.
const maxGenerateRetries = 3

// generatePayload is the queue payload for JobTypeGenerate. Generation pins
// the job to the reel state it was enqueued for; Attempt drives the
// exponential backoff of the self-managed retry chain.
type generatePayload struct {
	ReelID     uint64 `json:"reel_id"`
	Generation int    `json:"generation"`
	Attempt    int    `json:"attempt"`
}

// enqueueGeneration schedules one generation run. MaxAttempts is 1 on the
// queue side: the retry chain is managed here, through the reel's own state
// machine, so every re-run passes failed -> pending with a generation bump.
func (s *Service) enqueueGeneration(userID, reelID uint64, generation, attempt int, delay time.Duration) error {
	payload, err := json.Marshal(generatePayload{
		ReelID:     reelID,
		Generation: generation,
		Attempt:    attempt,
	})
	if err != nil {
		return err
	}
	return s.appCtx.Queue.EnqueueDelayed(userID, JobTypeGenerate, payload, delay, 1)
}

// RegisterJobs binds the reel job handlers onto a worker.
func (s *Service) RegisterJobs(w *jobs.Worker) {
	w.Register(JobTypeGenerate, s.HandleGenerate)
}

// HandleGenerate runs one generation attempt. Every status write is fenced
// by the payload's generation stamp: if the reel was cancelled or manually
// retried while this job was queued or rendering, the writes match zero rows
// and the job stands down without touching the reel.
func (s *Service) HandleGenerate(ctx context.Context, job *jobs.Job) error {
	var p generatePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		s.appCtx.Logger.Error("bad reel generation payload", "job_id", job.ID, "err", err)
		return nil
	}

	reel, err := s.reels.GetByID(ctx, p.ReelID)
	if err != nil {
		// deleted before the job ran; nothing to update
		s.appCtx.Logger.Warn("reel vanished before generation", "reel_id", p.ReelID, "err", err)
		return nil
	}

	started, err := s.reels.MarkProcessing(ctx, reel.ID, p.Generation)
	if err != nil {
		return err
	}
	if !started {
		s.appCtx.Logger.Info("stale generation job ignored",
			"reel_id", reel.ID, "generation", p.Generation, "status", reel.Status)
		return nil
	}

	photos, err := s.photos.ListByIDs(ctx, reel.PhotoIDs)
	if err != nil {
		s.failAndMaybeRetry(ctx, reel, p, err)
		return nil
	}
	if len(photos) == 0 {
		// all selected photos deleted since creation; retrying cannot help
		_, err := s.reels.MarkFailed(ctx, reel.ID, p.Generation,
			"Video generation failed: no photos available")
		return err
	}

	artifactRef, err := s.renderer.Render(ctx, RenderSpec{
		ReelID:          reel.ID,
		Title:           reel.Title,
		Theme:           reel.Theme,
		DurationSeconds: reel.DurationSeconds,
		Photos:          photos,
	})
	if err != nil {
		s.failAndMaybeRetry(ctx, reel, p, err)
		return nil
	}

	completed, err := s.reels.MarkCompleted(ctx, reel.ID, p.Generation, artifactRef)
	if err != nil {
		return err
	}
	if !completed {
		// cancelled mid-render; the artifact is an orphan now
		s.appCtx.Logger.Info("stale generation result discarded",
			"reel_id", reel.ID, "generation", p.Generation)
		if rmErr := s.renderer.Remove(ctx, artifactRef); rmErr != nil {
			s.appCtx.Logger.Warn("orphan artifact cleanup failed",
				"artifact", artifactRef, "err", rmErr)
		}
		return nil
	}

	s.appCtx.Logger.Info("reel generated",
		"reel_id", reel.ID, "photos", len(photos), "artifact", artifactRef)

	if s.sharing != nil {
		shareRef, err := s.sharing.CreateShareLink(ctx, reel.PhotoIDs, reel.UserID)
		if err != nil {
			s.appCtx.Logger.Warn("share link creation failed", "reel_id", reel.ID, "err", err)
			return nil
		}
		if err := s.reels.SetShareRef(ctx, reel.ID, shareRef); err != nil {
			s.appCtx.Logger.Warn("share link persist failed", "reel_id", reel.ID, "err", err)
		}
	}
	return nil
}

// failAndMaybeRetry marks the reel failed and, while attempts remain,
// resets it to pending and re-enqueues with exponential backoff
// (60 s, 120 s, 240 s). The reel is visibly failed between attempts; each
// re-run carries a fresh generation stamp.
func (s *Service) failAndMaybeRetry(ctx context.Context, reel *db.FlashbackReel, p generatePayload, cause error) {
	msg := fmt.Sprintf("Video generation failed: %v", cause)
	if _, err := s.reels.MarkFailed(ctx, reel.ID, p.Generation, msg); err != nil {
		s.appCtx.Logger.Error("failed to mark reel failed", "reel_id", reel.ID, "err", err)
		return
	}

	if p.Attempt >= maxGenerateRetries {
		s.appCtx.Logger.Error("reel generation exhausted retries",
			"reel_id", reel.ID, "attempts", p.Attempt+1, "err", cause)
		return
	}

	generation, reset, err := s.reels.ResetForRetry(ctx, reel.ID)
	if err != nil || !reset {
		s.appCtx.Logger.Error("reel retry reset failed",
			"reel_id", reel.ID, "reset", reset, "err", err)
		return
	}

	delay := time.Duration(60*(1<<p.Attempt)) * time.Second
	s.appCtx.Logger.Warn("reel generation failed, retrying",
		"reel_id", reel.ID, "attempt", p.Attempt+1, "delay", delay, "err", cause)
	if err := s.enqueueGeneration(reel.UserID, reel.ID, generation, p.Attempt+1, delay); err != nil {
		s.appCtx.Logger.Error("reel retry enqueue failed", "reel_id", reel.ID, "err", err)
	}
}
