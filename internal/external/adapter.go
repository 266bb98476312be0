package external

import (
	"time"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// ToTimeBlocks maps fetched events to time blocks in the external category. Every event yields
// exactly one block; an unparseable start or end is replaced with now.
func ToTimeBlocks(events []models.ExternalEvent, now time.Time) []models.TimeBlock {
	out := make([]models.TimeBlock, 0, len(events))
	for _, ev := range events {
		out = append(out, models.TimeBlock{
			ID:          ev.ID,
			Title:       ev.Title,
			Start:       parseOrNow(ev.Start, now),
			End:         parseOrNow(ev.End, now),
			Category:    models.CategoryExternal,
			Description: ev.Description,
			Source:      ev.Source,
		})
	}
	return out
}

func parseOrNow(raw string, now time.Time) time.Time {
	if t, ok := models.ParseTimestamp(raw); ok {
		return t
	}
	return now
}
