// Package views computes the read-only projections of a user's time blocks. Every function
// is pure: it reads its arguments and returns fresh slices.
package views

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// EmptyTotalHours is returned by TotalHours when no category has measurable time, so that
// percentage computations never divide by zero. It is a guard, not a measurement.
const EmptyTotalHours = 1.0

// VisibleEvents returns the blocks whose category is visible in filters, in store order.
func VisibleEvents(blocks []models.TimeBlock, filters models.CategoryFilter) []models.TimeBlock {
	out := make([]models.TimeBlock, 0, len(blocks))
	for _, b := range blocks {
		if filters[b.Category] {
			out = append(out, b)
		}
	}
	return out
}

// CalendarEvents returns the visible native blocks followed by the external blocks, decorated
// for display. External blocks are read-only and never filtered.
func CalendarEvents(blocks []models.TimeBlock, filters models.CategoryFilter, external []models.TimeBlock) []models.CalendarEvent {
	visible := VisibleEvents(blocks, filters)
	out := make([]models.CalendarEvent, 0, len(visible)+len(external))
	for _, b := range visible {
		out = append(out, models.CalendarEvent{TimeBlock: b, Color: models.CategoryColor(b.Category)})
	}
	for _, b := range external {
		out = append(out, models.CalendarEvent{TimeBlock: b, Color: models.CategoryColor(b.Category), ReadOnly: true})
	}
	return out
}

// HistoryView returns every block sorted by start, most recent first. Blocks sharing a
// start keep their store order.
func HistoryView(blocks []models.TimeBlock) []models.TimeBlock {
	out := make([]models.TimeBlock, len(blocks))
	copy(out, blocks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.After(out[j].Start)
	})
	return out
}

// CategoryDurations aggregates hours and block counts per registry category, in registry
// order. Blocks with an unset timestamp are counted but add no time.
func CategoryDurations(visible []models.TimeBlock) []models.CategoryDuration {
	registry := models.Categories()
	totals := make(map[models.Category]time.Duration, len(registry))
	counts := make(map[models.Category]int, len(registry))
	for _, b := range visible {
		counts[b.Category]++
		if d, ok := b.Duration(); ok {
			totals[b.Category] += d
		}
	}

	out := make([]models.CategoryDuration, 0, len(registry))
	for _, info := range registry {
		ms := totals[info.ID].Milliseconds()
		out = append(out, models.CategoryDuration{
			ID:    info.ID,
			Label: info.Label,
			Color: info.Color,
			Hours: roundTenth(float64(ms) / float64(time.Hour.Milliseconds())),
			Count: counts[info.ID],
		})
	}
	return out
}

// TotalHours sums the per-category hours, returning EmptyTotalHours when the sum is not positive.
func TotalHours(durations []models.CategoryDuration) float64 {
	sum := sumHours(durations)
	if !(sum > 0) {
		return EmptyTotalHours
	}
	return sum
}

// Percentage returns hours as a whole-number share of total.
func Percentage(hours, total float64) float64 {
	if !(total > 0) {
		total = EmptyTotalHours
	}
	return math.Floor(hours/total*100 + 0.5)
}

// Summarize builds the analytics read model for the blocks visible under filters.
func Summarize(blocks []models.TimeBlock, filters models.CategoryFilter) models.AnalyticsSummary {
	durations := CategoryDurations(VisibleEvents(blocks, filters))
	total := TotalHours(durations)
	for i := range durations {
		durations[i].Percentage = Percentage(durations[i].Hours, total)
	}
	return models.AnalyticsSummary{Categories: durations, TotalHours: total, HasData: sumHours(durations) > 0}
}

func sumHours(durations []models.CategoryDuration) float64 {
	sum := 0.0
	for _, d := range durations {
		sum += d.Hours
	}
	return sum
}

func roundTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}
