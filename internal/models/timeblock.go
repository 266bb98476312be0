package models

import (
	"encoding/json"
	"strings"
	"time"
)

// BlockSource marks where a time block originated.
type BlockSource string

const (
	SourceNative  BlockSource = ""
	SourceGoogle  BlockSource = "google"
	SourceOutlook BlockSource = "outlook"
	SourceApple   BlockSource = "apple"
	SourceICS     BlockSource = "ics"
)

// TimeBlock is a scheduled activity.
type TimeBlock struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Category    Category    `json:"category"`
	Description string      `json:"description,omitempty"`
	Source      BlockSource `json:"source,omitempty"`
}

// Duration returns end minus start. ok is false when either timestamp is unset.
func (b TimeBlock) Duration() (d time.Duration, ok bool) {
	if b.Start.IsZero() || b.End.IsZero() {
		return 0, false
	}
	return b.End.Sub(b.Start), true
}

// IsExternal reports whether the block was imported from an external calendar.
func (b TimeBlock) IsExternal() bool {
	return b.Category == CategoryExternal
}

// timestampLayouts are accepted when decoding persisted or imported timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses raw using the accepted layouts.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type timeBlockJSON struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Start       string      `json:"start"`
	End         string      `json:"end"`
	Category    Category    `json:"category"`
	Description string      `json:"description,omitempty"`
	Source      BlockSource `json:"source,omitempty"`
}

// UnmarshalJSON decodes a block leniently: malformed timestamps decode to the zero time
// instead of failing the whole state document.
func (b *TimeBlock) UnmarshalJSON(data []byte) error {
	var raw timeBlockJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, _ := ParseTimestamp(raw.Start)
	end, _ := ParseTimestamp(raw.End)
	*b = TimeBlock{
		ID:          raw.ID,
		Title:       raw.Title,
		Start:       start,
		End:         end,
		Category:    raw.Category,
		Description: raw.Description,
		Source:      raw.Source,
	}
	return nil
}
