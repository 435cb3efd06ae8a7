package reel

import (
	"sort"
	"time"

	"github.com/photovault/memories/internal/db"
	"github.com/photovault/memories/internal/memory"
)

// Reel sizing bounds.
const (
	MinPhotosPerReel = 10
	MaxPhotosPerReel = 20
)

// SelectPhotos turns a dated photo set into a bounded, temporally
// distributed subset, ordered chronologically for playback.
//
// Algorithm:
//  1. wantCount is clamped to [MinPhotosPerReel, MaxPhotosPerReel].
//  2. If the input fits, everything is returned in chronological order.
//  3. Otherwise photos are scored and grouped by calendar date (capture
//     date, falling back to upload date).
//  4. With at most wantCount distinct dates: the top-scored photo of each
//     date is taken, then remaining slots fill with the next-highest-scored
//     photos across all dates.
//  5. With more dates than slots: wantCount dates are sampled at an even
//     stride across the sorted date list, taking each sampled date's best.
//
// Selection order is by score; playback order is by time.
func SelectPhotos(photos []db.Photo, wantCount int, scorer *memory.Scorer) []db.Photo {
	if wantCount < MinPhotosPerReel {
		wantCount = MinPhotosPerReel
	}
	if wantCount > MaxPhotosPerReel {
		wantCount = MaxPhotosPerReel
	}

	if len(photos) <= wantCount {
		return sortChronological(append([]db.Photo(nil), photos...))
	}

	type scored struct {
		photo db.Photo
		score float64
	}

	all := make([]scored, len(photos))
	for i, p := range photos {
		all[i] = scored{photo: p, score: scorer.Score(&p)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	// group by calendar date; per-date lists inherit the score-desc order
	byDate := make(map[time.Time][]scored)
	for _, sp := range all {
		d := db.DateOnly(sp.photo.BestDate())
		byDate[d] = append(byDate[d], sp)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var selected []db.Photo
	if len(dates) <= wantCount {
		// best from every date, then fill with the runners-up
		for _, d := range dates {
			selected = append(selected, byDate[d][0].photo)
		}
		if remaining := wantCount - len(selected); remaining > 0 {
			var rest []scored
			for _, d := range dates {
				rest = append(rest, byDate[d][1:]...)
			}
			sort.SliceStable(rest, func(i, j int) bool { return rest[i].score > rest[j].score })
			for i := 0; i < remaining && i < len(rest); i++ {
				selected = append(selected, rest[i].photo)
			}
		}
	} else {
		// even stride across the date range
		stride := len(dates) / wantCount
		for i := 0; i < wantCount; i++ {
			selected = append(selected, byDate[dates[i*stride]][0].photo)
		}
	}

	return sortChronological(selected)
}

func sortChronological(photos []db.Photo) []db.Photo {
	sort.SliceStable(photos, func(i, j int) bool {
		return photos[i].BestDate().Before(photos[j].BestDate())
	})
	return photos
}
