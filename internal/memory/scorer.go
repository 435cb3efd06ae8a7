package memory

import (
	"math"
	"time"

	"github.com/photovault/memories/internal/db"
)

// SignificanceThreshold is the minimum score a photo must reach to be kept
// in a memory.
const SignificanceThreshold = 1.0

// Scorer computes a photo's significance from sharing activity, curation,
// image quality and recency. Now is injectable so tests get stable scores.
type Scorer struct {
	Now func() time.Time
}

// NewScorer creates a scorer on the wall clock.
func NewScorer() *Scorer {
	return &Scorer{Now: func() time.Time { return time.Now().UTC() }}
}

// Score returns the significance of a photo. Never negative: every term is
// non-negative by construction.
//
// Terms:
//   - 1.0 base for existing
//   - share activity, 2.0 per public share of a containing album
//   - 0.5 client-delivery engagement placeholder (integration pending)
//   - curation, 1.5 per album membership
//   - quality bonus from megapixels, 0.1 per MP capped at 2.0
//   - recency bonus 2.0 decaying 0.1 per year since capture, floor 0
//
// Recency is measured from now, not from the memory's target date, so older
// anniversaries score lower even within one discovery call. Callers must not
// assume ordering follows target-date distance.
func (s *Scorer) Score(photo *db.Photo) float64 {
	score := 1.0

	score += float64(photo.ShareCount) * 2.0

	score += 0.5

	score += float64(photo.AlbumCount) * 1.5

	if photo.Width > 0 && photo.Height > 0 {
		megapixels := float64(photo.Width) * float64(photo.Height) / 1_000_000
		score += math.Min(megapixels*0.1, 2.0)
	}

	if photo.TakenAt != nil {
		yearsAgo := s.Now().Sub(*photo.TakenAt).Hours() / 24 / 365.25
		score += math.Max(0, 2.0-yearsAgo*0.1)
	}

	return score
}
