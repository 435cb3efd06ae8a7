package memory

import (
	"context"
	"encoding/json"
	"math"

	"github.com/photovault/memories/internal/apperr"
	"github.com/photovault/memories/internal/cache"
)

// Analytics summarizes a user's memory activity over a trailing window.
type Analytics struct {
	TotalMemories        int64            `json:"total_memories"`
	TotalEngagements     int64            `json:"total_engagements"`
	AvgSignificanceScore float64          `json:"avg_significance_score"`
	EngagementByType     map[string]int64 `json:"engagement_by_type"`
	PeriodDays           int              `json:"period_days"`
}

// GetAnalytics computes (or serves cached) analytics for the user over the
// last days days. Cached for 15 minutes; cache failures fall back to the DB.
func (e *Engine) GetAnalytics(ctx context.Context, userID uint64, days int) (*Analytics, error) {
	if days <= 0 {
		days = 30
	}

	key := e.appCtx.Cache.KeyForAnalytics(userID, days)
	if raw, ok := e.appCtx.Cache.Get(ctx, key); ok {
		var cached Analytics
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	since := e.Now().AddDate(0, 0, -days)

	total, avg, err := e.memories.MemoryStatsSince(ctx, userID, since)
	if err != nil {
		return nil, apperr.Map(err)
	}

	engagements, err := e.memories.CountEngagements(ctx, userID, since)
	if err != nil {
		return nil, apperr.Map(err)
	}

	byType, err := e.memories.EngagementByType(ctx, userID, since)
	if err != nil {
		return nil, apperr.Map(err)
	}

	analytics := &Analytics{
		TotalMemories:        total,
		TotalEngagements:     engagements,
		AvgSignificanceScore: math.Round(avg*100) / 100,
		EngagementByType:     byType,
		PeriodDays:           days,
	}

	if raw, err := json.Marshal(analytics); err == nil {
		e.appCtx.Cache.Set(ctx, key, raw, cache.AnalyticsTTL)
	}

	return analytics, nil
}
