package reel

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/photovault/memories/internal/app"
	"github.com/photovault/memories/internal/apperr"
	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/memory"
	"github.com/photovault/memories/internal/repository"
)

// Duration bounds and default, in seconds. Out-of-range values are clamped,
// not rejected.
const (
	MinDurationSeconds     = 10
	MaxDurationSeconds     = 300
	DefaultDurationSeconds = 30
)

// CancelReason is the stored error message for user-cancelled reels.
const CancelReason = "Cancelled by user"

// RenderSpec is what the external renderer receives.
type RenderSpec struct {
	ReelID          uint64
	Title           string
	Theme           string
	DurationSeconds int
	Photos          []db.Photo
}

// Renderer produces the reel artifact. External collaborator; may fail, and
// a render already in flight cannot be preempted by cancel.
type Renderer interface {
	Render(ctx context.Context, spec RenderSpec) (string, error)
	Remove(ctx context.Context, artifactRef string) error
}

// Sharing mints share links for completed reels. External collaborator;
// strictly best-effort.
type Sharing interface {
	CreateShareLink(ctx context.Context, photoIDs []uint64, ownerID uint64) (string, error)
}

var validate = validator.New()

// Service is the reel lifecycle manager: it owns the pending -> processing
// -> {completed|failed} state machine, the async generation job and its
// retry policy.
type Service struct {
	appCtx   *app.AppContext
	reels    *repository.ReelRepository
	photos   *repository.PhotoIndex
	scorer   *memory.Scorer
	renderer Renderer
	sharing  Sharing

	// Now is injectable for deterministic estimates in tests.
	Now func() time.Time
}

// NewService creates a reel service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, renderer Renderer, sharing Sharing) *Service {
	now := func() time.Time { return time.Now().UTC() }
	return &Service{
		appCtx:   appCtx,
		reels:    repository.NewReelRepository(appCtx.DB),
		photos:   repository.NewPhotoIndex(appCtx.DB),
		scorer:   &memory.Scorer{Now: now},
		renderer: renderer,
		sharing:  sharing,
		Now:      now,
	}
}

// CreateReelParams is the request shape for CreateRequest.
type CreateReelParams struct {
	UserID          uint64    `validate:"required"`
	Title           string    `validate:"required,max=200"`
	StartDate       time.Time `validate:"required"`
	EndDate         time.Time `validate:"required"`
	Theme           string
	DurationSeconds int
	// Enqueue controls whether generation starts immediately. Callers that
	// schedule generation themselves pass false.
	Enqueue bool
}

// CanGenerateReel reports whether the date range holds enough photos.
func (s *Service) CanGenerateReel(ctx context.Context, userID uint64, start, end time.Time) (bool, error) {
	count, err := s.photos.CountByDateRange(ctx, userID, start, end)
	if err != nil {
		return false, apperr.Map(err)
	}
	return count >= MinPhotosPerReel, nil
}

// CreateRequest validates the request, selects the reel's photos and
// persists a pending reel, optionally enqueueing the generation job.
//
// Leniency is intentional and bounded: an unknown theme falls back to
// classic and the duration is clamped to its range, but fewer than
// MinPhotosPerReel eligible photos is a hard InsufficientPhotosError
// rather than a silently smaller reel.
func (s *Service) CreateRequest(ctx context.Context, params CreateReelParams) (*db.FlashbackReel, error) {
	if err := validate.Struct(params); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return nil, apperr.Validation(errs[0].Field(), "failed "+errs[0].Tag()+" validation")
		}
		return nil, apperr.Validation("params", err.Error())
	}

	start := db.DateOnly(params.StartDate)
	end := db.DateOnly(params.EndDate)
	if end.Before(start) {
		return nil, apperr.Validation("end_date", "must not precede start_date")
	}

	theme := params.Theme
	switch theme {
	case db.ThemeClassic, db.ThemeModern, db.ThemeVintage, db.ThemeCinematic:
	default:
		theme = db.ThemeClassic
	}

	duration := params.DurationSeconds
	if duration == 0 {
		duration = DefaultDurationSeconds
	}
	if duration < MinDurationSeconds {
		duration = MinDurationSeconds
	}
	if duration > MaxDurationSeconds {
		duration = MaxDurationSeconds
	}

	photos, err := s.photos.ListByDateRange(ctx, params.UserID, start, end)
	if err != nil {
		return nil, apperr.Map(err)
	}

	selection := SelectPhotos(photos, MaxPhotosPerReel, s.scorer)
	if len(selection) < MinPhotosPerReel {
		return nil, &apperr.InsufficientPhotosError{Need: MinPhotosPerReel, Found: len(selection)}
	}

	photoIDs := make([]uint64, len(selection))
	for i, p := range selection {
		photoIDs[i] = p.ID
	}

	reel := &db.FlashbackReel{
		UserID:          params.UserID,
		Title:           params.Title,
		Theme:           theme,
		DurationSeconds: duration,
		Status:          db.ReelStatusPending,
		StartDate:       start,
		EndDate:         end,
		PhotoIDs:        photoIDs,
		PhotoCount:      len(photoIDs),
	}
	if err := s.reels.Create(ctx, reel); err != nil {
		return nil, apperr.Map(err)
	}

	if params.Enqueue {
		if err := s.enqueueGeneration(reel.UserID, reel.ID, reel.Generation, 0, 0); err != nil {
			// The reel stays pending; a later retry or scheduler sweep can
			// still pick it up.
			s.appCtx.Logger.Error("failed to enqueue reel generation",
				"reel_id", reel.ID, "err", err)
		}
	}

	return reel, nil
}

// Status is the coarse progress view polled by callers. Async failures
// surface only here, through Status/ErrorMessage.
type Status struct {
	ReelID              uint64     `json:"reel_id"`
	Status              string     `json:"status"`
	ProgressPercent     int        `json:"progress_percentage"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// GetStatus returns the reel's progress estimate: pending 0%, processing
// 50%, completed 100%, failed 0%, plus an estimated completion time of
// 2 s per photo (pending adds a 30 s queue allowance).
func (s *Service) GetStatus(ctx context.Context, reelID, userID uint64) (*Status, error) {
	reel, err := s.reels.GetByIDForUser(ctx, reelID, userID)
	if err != nil {
		return nil, apperr.Map(err)
	}

	status := &Status{
		ReelID:       reel.ID,
		Status:       reel.Status,
		ErrorMessage: reel.ErrorMessage,
		CreatedAt:    reel.CreatedAt,
		CompletedAt:  reel.CompletedAt,
	}

	switch reel.Status {
	case db.ReelStatusProcessing:
		status.ProgressPercent = 50
		eta := s.Now().Add(time.Duration(reel.PhotoCount) * 2 * time.Second)
		status.EstimatedCompletion = &eta
	case db.ReelStatusCompleted:
		status.ProgressPercent = 100
	case db.ReelStatusPending:
		eta := s.Now().Add(30*time.Second + time.Duration(reel.PhotoCount)*2*time.Second)
		status.EstimatedCompletion = &eta
	}

	return status, nil
}

// Cancel moves a pending or processing reel to failed with CancelReason.
// Returns false when the reel was already terminal. Cooperative only: an
// in-flight render is not interrupted, but its late completion is fenced by
// the generation bump.
func (s *Service) Cancel(ctx context.Context, reelID, userID uint64) (bool, error) {
	// existence check so an unknown id is NotFound, not just "not cancellable"
	if _, err := s.reels.GetByIDForUser(ctx, reelID, userID); err != nil {
		return false, apperr.Map(err)
	}
	return s.reels.Cancel(ctx, reelID, userID, CancelReason)
}

// Retry re-enqueues a failed reel. Only failed reels can be retried.
func (s *Service) Retry(ctx context.Context, reelID, userID uint64) error {
	reel, err := s.reels.GetByIDForUser(ctx, reelID, userID)
	if err != nil {
		return apperr.Map(err)
	}
	if reel.Status != db.ReelStatusFailed {
		return apperr.Validation("status", "only failed reels can be retried")
	}

	generation, reset, err := s.reels.ResetForRetry(ctx, reel.ID)
	if err != nil {
		return apperr.Map(err)
	}
	if !reset {
		return apperr.Validation("status", "only failed reels can be retried")
	}

	return s.enqueueGeneration(reel.UserID, reel.ID, generation, 0, 0)
}

// List returns the user's reels, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID uint64, status string, limit int) ([]db.FlashbackReel, error) {
	if status != "" {
		switch status {
		case db.ReelStatusPending, db.ReelStatusProcessing, db.ReelStatusCompleted, db.ReelStatusFailed:
		default:
			return nil, apperr.Validation("status", "unknown reel status")
		}
	}
	reels, err := s.reels.ListByUser(ctx, userID, status, limit)
	return reels, apperr.Map(err)
}

// Delete removes a reel and cleans up its artifact best-effort.
func (s *Service) Delete(ctx context.Context, reelID, userID uint64) error {
	reel, err := s.reels.GetByIDForUser(ctx, reelID, userID)
	if err != nil {
		return apperr.Map(err)
	}

	if reel.ArtifactRef != "" && s.renderer != nil {
		if err := s.renderer.Remove(ctx, reel.ArtifactRef); err != nil {
			s.appCtx.Logger.Warn("artifact cleanup failed",
				"reel_id", reel.ID, "artifact", reel.ArtifactRef, "err", err)
		}
	}

	deleted, err := s.reels.Delete(ctx, reelID, userID)
	if err != nil {
		return apperr.Map(err)
	}
	if !deleted {
		return apperr.ErrNotFound
	}
	return nil
}
