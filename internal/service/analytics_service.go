package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/views"
)

// AnalyticsService provides per-category time analytics with cache integration.
type AnalyticsService struct {
	sessions sessionManager
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(sessions sessionManager, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{sessions: sessions, cache: cache, metrics: metrics, logger: logger}
}

// Summary returns hours, counts and percentages of the visible blocks per category. The
// boolean indicates whether data originated from cache.
func (s *AnalyticsService) Summary(ctx context.Context, userID string) (*models.AnalyticsSummary, bool, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	// the key carries the state version the summary is computed from, so a write landing
	// before Set leaves the entry unreachable
	snap := sess.Snapshot()
	cacheKey := analyticsCacheKey(userID, snap.Version)
	var cached models.AnalyticsSummary
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, true, nil
	}

	summary := views.Summarize(snap.Blocks, snap.Filters)
	s.cache.Set(ctx, cacheKey, summary, 0)
	return &summary, false, nil
}

// SystemMetrics exposes instrumentation snapshot for dashboards.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	return s.metrics.Snapshot()
}
