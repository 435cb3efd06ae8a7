package memory

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/photovault/memories/internal/apperr"
	"github.com/photovault/memories/internal/db"
)

var validInteractions = map[string]struct{}{
	db.InteractionView:     {},
	db.InteractionShare:    {},
	db.InteractionLike:     {},
	db.InteractionDownload: {},
}

// TrackEngagement appends an interaction event against a memory and
// refreshes its rolling counters.
//
// Behavior:
//   - An unknown interaction type is a ValidationError and records nothing.
//   - A missing memory is logged and swallowed: tracking calls favor
//     availability over confirmation, so the caller sees success.
func (e *Engine) TrackEngagement(ctx context.Context, memoryID uint64, interactionType, ipAddress, userAgent string) error {
	if _, ok := validInteractions[interactionType]; !ok {
		return apperr.Validation("interaction_type", "must be one of view, share, like, download")
	}

	if _, err := e.memories.GetByID(ctx, memoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			e.appCtx.Logger.Warn("engagement against missing memory dropped",
				"memory_id", memoryID, "interaction", interactionType)
			return nil
		}
		return apperr.Map(err)
	}

	event := &db.EngagementEvent{
		MemoryID:        memoryID,
		InteractionType: interactionType,
		IPAddress:       ipAddress,
		UserAgent:       userAgent,
	}
	return apperr.Map(e.memories.AppendEngagement(ctx, event))
}
