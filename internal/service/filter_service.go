package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// FilterService manages category visibility flags.
type FilterService struct {
	sessionCommitter
}

// NewFilterService constructs a FilterService.
func NewFilterService(sessions sessionManager, cache *CacheService, logger *zap.Logger) *FilterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterService{sessionCommitter{sessions: sessions, cache: cache, logger: logger}}
}

// Get returns the current flags.
func (s *FilterService) Get(ctx context.Context, userID string) (models.CategoryFilter, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot().Filters, nil
}

// Toggle flips the flag of category and returns the resulting flags.
func (s *FilterService) Toggle(ctx context.Context, userID string, category models.Category) (models.CategoryFilter, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.ToggleFilter(category); err != nil {
		return nil, err
	}
	s.commit(ctx, sess)
	return sess.Snapshot().Filters, nil
}

// Set assigns the flag of category.
func (s *FilterService) Set(ctx context.Context, userID string, category models.Category, visible bool) (models.CategoryFilter, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.SetFilter(category, visible); err != nil {
		return nil, err
	}
	s.commit(ctx, sess)
	return sess.Snapshot().Filters, nil
}

// Reset makes every category visible.
func (s *FilterService) Reset(ctx context.Context, userID string) (models.CategoryFilter, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	filters := sess.ResetFilters()
	s.commit(ctx, sess)
	return filters, nil
}
