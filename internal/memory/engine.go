package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/photovault/memories/internal/app"
	"github.com/photovault/memories/internal/apperr"
	"github.com/photovault/memories/internal/cache"
	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/repository"
)

// Discovery tuning. Matches the limits the product has shipped with; the
// candidate caps bound scoring work per call.
const (
	maxPhotosPerMemory = 20
	maxExactCandidates = 50
	expansionDays      = 7
	expansionYears     = 9
	maxPerExpandedYear = 10
	maxExpandedTotal   = 30
)

// Engine discovers "on this day" memories for a (user, date) pair.
//
// The cache and the existence pre-check are optimizations; the unique index
// on (user_id, target_date) is the durable idempotency guarantee, and a lost
// insert race resolves to the winner's row.
type Engine struct {
	appCtx   *app.AppContext
	photos   *repository.PhotoIndex
	memories *repository.MemoryRepository
	prefs    *repository.PreferencesRepository
	scorer   *Scorer

	// Now is injectable for deterministic discovery in tests.
	Now func() time.Time
}

// NewEngine creates a discovery engine with dependencies from AppContext.
func NewEngine(appCtx *app.AppContext) *Engine {
	now := func() time.Time { return time.Now().UTC() }
	return &Engine{
		appCtx:   appCtx,
		photos:   repository.NewPhotoIndex(appCtx.DB),
		memories: repository.NewMemoryRepository(appCtx.DB),
		prefs:    repository.NewPreferencesRepository(appCtx.DB),
		scorer:   &Scorer{Now: now},
		Now:      now,
	}
}

type scoredPhoto struct {
	photo db.Photo
	score float64
}

// Discover finds or creates the memory for (userID, targetDate). Returns nil
// when no photo clears the significance threshold; that negative result is
// cached so repeated calls skip the scan.
//
// Calling Discover twice for the same pair always yields the same memory id
// and photo set.
func (e *Engine) Discover(ctx context.Context, userID uint64, targetDate time.Time) (*db.Memory, error) {
	targetDate = db.DateOnly(targetDate)
	key := e.appCtx.Cache.KeyForDailyMemories(userID, targetDate)

	// cache fast path, including cached absence
	if memory, hit := e.fromCache(ctx, key); hit {
		return memory, nil
	}

	// idempotency fast path independent of the cache
	existing, err := e.memories.GetByUserAndDate(ctx, userID, targetDate)
	if err != nil {
		return nil, apperr.Map(err)
	}
	if existing != nil {
		e.cacheIDs(ctx, key, []uint64{existing.ID})
		return existing, nil
	}

	// exact pass: same month/day, previous years only
	photos, err := e.photos.ListByCalendarDate(ctx, userID,
		int(targetDate.Month()), targetDate.Day(), targetDate.Year(), maxExactCandidates)
	if err != nil {
		return nil, apperr.Map(err)
	}

	if len(photos) == 0 {
		photos, err = e.expandedScan(ctx, userID, targetDate)
		if err != nil {
			return nil, apperr.Map(err)
		}
	}

	scored := e.scoreCandidates(photos)
	if len(scored) == 0 {
		// negative caching: remember the absence to avoid rescanning
		e.cacheIDs(ctx, key, []uint64{})
		return nil, nil
	}

	memory, err := e.createMemory(ctx, userID, targetDate, scored)
	if err != nil {
		return nil, apperr.Map(err)
	}

	e.cacheIDs(ctx, key, []uint64{memory.ID})
	return memory, nil
}

// fromCache resolves the cached id list for a daily key. The second return
// is false on miss or when the cached entry no longer resolves (retention
// may have deleted the memory under a live cache entry).
func (e *Engine) fromCache(ctx context.Context, key string) (*db.Memory, bool) {
	raw, ok := e.appCtx.Cache.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		e.appCtx.Logger.Warn("corrupt daily memories cache entry", "key", key, "err", err)
		return nil, false
	}
	if len(ids) == 0 {
		return nil, true // cached negative result
	}

	memories, err := e.memories.ListByIDs(ctx, ids)
	if err != nil || len(memories) == 0 {
		return nil, false
	}
	return &memories[0], true
}

func (e *Engine) cacheIDs(ctx context.Context, key string, ids []uint64) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	e.appCtx.Cache.Set(ctx, key, raw, cache.DailyMemoriesTTL)
}

// expandedScan widens the search to a ±expansionDays window around the
// anniversary in each of the previous expansionYears years, newest first,
// capped per year, stopping early once enough candidates are collected.
func (e *Engine) expandedScan(ctx context.Context, userID uint64, targetDate time.Time) ([]db.Photo, error) {
	var out []db.Photo

	for offset := 1; offset <= expansionYears; offset++ {
		anniversary := targetDate.AddDate(-offset, 0, 0)
		start := anniversary.AddDate(0, 0, -expansionDays)
		end := anniversary.AddDate(0, 0, expansionDays)

		yearPhotos, err := e.photos.ListByDateRange(ctx, userID, start, end)
		if err != nil {
			return nil, err
		}

		// newest first within the year window
		sort.SliceStable(yearPhotos, func(i, j int) bool {
			return yearPhotos[i].BestDate().After(yearPhotos[j].BestDate())
		})
		if len(yearPhotos) > maxPerExpandedYear {
			yearPhotos = yearPhotos[:maxPerExpandedYear]
		}
		out = append(out, yearPhotos...)

		if len(out) >= maxExpandedTotal {
			break
		}
	}

	return out, nil
}

// scoreCandidates scores every candidate, drops sub-threshold photos, sorts
// by descending score (stable, so candidate order breaks ties) and truncates
// to the per-memory cap.
func (e *Engine) scoreCandidates(photos []db.Photo) []scoredPhoto {
	scored := make([]scoredPhoto, 0, len(photos))
	for _, p := range photos {
		s := e.scorer.Score(&p)
		if s >= SignificanceThreshold {
			scored = append(scored, scoredPhoto{photo: p, score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > maxPhotosPerMemory {
		scored = scored[:maxPhotosPerMemory]
	}
	return scored
}

// createMemory persists the memory with its ordered photo links. The
// memory's score is the mean of its kept photos.
func (e *Engine) createMemory(ctx context.Context, userID uint64, targetDate time.Time, scored []scoredPhoto) (*db.Memory, error) {
	total := 0.0
	for _, sp := range scored {
		total += sp.score
	}

	memory := &db.Memory{
		UserID:            userID,
		TargetDate:        targetDate,
		SignificanceScore: total / float64(len(scored)),
	}

	links := make([]db.MemoryPhoto, len(scored))
	for i, sp := range scored {
		links[i] = db.MemoryPhoto{
			PhotoID:           sp.photo.ID,
			SignificanceScore: sp.score,
		}
	}

	memory, created, err := e.memories.CreateWithPhotos(ctx, memory, links)
	if err != nil {
		return nil, err
	}
	if !created {
		e.appCtx.Logger.Debug("lost discovery race, using existing memory",
			"user_id", userID, "memory_id", memory.ID)
	}
	return memory, nil
}

// MemoryDetail is the hydrated view of a memory returned to the API layer.
type MemoryDetail struct {
	Memory    db.Memory  `json:"memory"`
	Photos    []db.Photo `json:"photos"`
	YearsAgo  int        `json:"years_ago"`
	Earliest  *time.Time `json:"earliest,omitempty"`
	Latest    *time.Time `json:"latest,omitempty"`
	Locations int        `json:"unique_locations"`
}

// GetMemoryDetail returns a memory with its photos in significance order,
// scoped to the owning user.
func (e *Engine) GetMemoryDetail(ctx context.Context, memoryID, userID uint64) (*MemoryDetail, error) {
	memory, err := e.memories.GetByIDForUser(ctx, memoryID, userID)
	if err != nil {
		return nil, apperr.Map(err)
	}

	photos, err := e.memories.ListPhotos(ctx, memory.ID)
	if err != nil {
		return nil, apperr.Map(err)
	}

	detail := &MemoryDetail{
		Memory:   *memory,
		Photos:   photos,
		YearsAgo: int(e.Now().Sub(memory.TargetDate).Hours() / 24 / 365),
	}

	locations := make(map[string]struct{})
	for _, p := range photos {
		if p.TakenAt != nil {
			if detail.Earliest == nil || p.TakenAt.Before(*detail.Earliest) {
				detail.Earliest = p.TakenAt
			}
			if detail.Latest == nil || p.TakenAt.After(*detail.Latest) {
				detail.Latest = p.TakenAt
			}
		}
		if p.LocationText != "" {
			locations[p.LocationText] = struct{}{}
		}
	}
	detail.Locations = len(locations)

	return detail, nil
}

// OnPhotoMutation invalidates the user's cached daily entries for the recent
// window. Called by the photo service after an upload or delete.
//
// A new photo whose capture date matches an anniversary outside the window
// can leave a stale negative entry until the TTL expires; that gap is
// documented and accepted.
func (e *Engine) OnPhotoMutation(ctx context.Context, userID uint64) {
	e.appCtx.Cache.InvalidateUserMemoryWindow(ctx, userID, db.DateOnly(e.Now()))
}

// GetPreferences returns the user's memory preferences, creating the row
// with defaults on first read.
func (e *Engine) GetPreferences(ctx context.Context, userID uint64) (*db.MemoryPreferences, error) {
	prefs, err := e.prefs.GetOrCreate(ctx, userID)
	return prefs, apperr.Map(err)
}

// UpdatePreferences persists user-initiated preference changes.
func (e *Engine) UpdatePreferences(ctx context.Context, prefs *db.MemoryPreferences) error {
	switch prefs.Frequency {
	case db.FrequencyDaily, db.FrequencyWeekly, db.FrequencyMonthly:
	default:
		return apperr.Validation("frequency", "must be one of daily, weekly, monthly")
	}
	return apperr.Map(e.prefs.Update(ctx, prefs))
}
