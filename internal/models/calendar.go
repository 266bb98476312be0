package models

import "time"

// DefaultWindowPadding is how far around the selected date external events are fetched.
const DefaultWindowPadding = 7 * 24 * time.Hour

// DateWindow is the visible calendar range [Start, End].
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowAround returns the window spanning padding before and after date.
func WindowAround(date time.Time, padding time.Duration) DateWindow {
	if padding <= 0 {
		padding = DefaultWindowPadding
	}
	return DateWindow{Start: date.Add(-padding), End: date.Add(padding)}
}

// IsZero reports whether the window has not been set.
func (w DateWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Equal reports whether both windows cover the same instants.
func (w DateWindow) Equal(other DateWindow) bool {
	return w.Start.Equal(other.Start) && w.End.Equal(other.End)
}

// ExternalEvent is an event fetched from a third-party calendar, before conversion.
// Start and End are kept raw so conversion can decide how to treat malformed values.
type ExternalEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Start       string      `json:"start"`
	End         string      `json:"end"`
	Description string      `json:"description,omitempty"`
	Source      BlockSource `json:"source"`
}

// CalendarEvent is a time block decorated for calendar display.
type CalendarEvent struct {
	TimeBlock
	Color    string `json:"color"`
	ReadOnly bool   `json:"read_only"`
}
