package models

import "time"

// CategoryDuration aggregates the visible time spent in one category.
type CategoryDuration struct {
	ID         Category `json:"id"`
	Label      string   `json:"label"`
	Color      string   `json:"color"`
	Hours      float64  `json:"hours"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

// AnalyticsSummary is the analytics read model for one render pass.
type AnalyticsSummary struct {
	Categories []CategoryDuration `json:"categories"`
	TotalHours float64            `json:"total_hours"`
	// HasData is false when TotalHours holds the empty-total guard rather than a measurement.
	HasData bool `json:"has_data"`
}

// AnalyticsSystemMetrics summarises service instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	StateSaves               uint64    `json:"state_saves"`
	AverageStateSaveMs       float64   `json:"average_state_save_ms"`
	ExternalFetches          uint64    `json:"external_fetches"`
	ExternalFailures         uint64    `json:"external_failures"`
	ActiveSessions           int       `json:"active_sessions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
