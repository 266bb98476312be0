package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/session"
)

type sessionManager interface {
	Get(ctx context.Context, userID string) (*session.Session, error)
	Persist(ctx context.Context, s *session.Session) error
}

// sessionCommitter writes a session back after a mutation and drops derived caches.
// A failed write is retried by the session janitor, so it never fails the request.
type sessionCommitter struct {
	sessions sessionManager
	cache    *CacheService
	logger   *zap.Logger
}

func (c sessionCommitter) commit(ctx context.Context, s *session.Session) {
	if err := c.sessions.Persist(ctx, s); err != nil {
		c.logger.Warn("failed to persist session state", zap.String("user_id", s.UserID()), zap.Error(err))
	}
	if err := c.cache.Invalidate(ctx, analyticsCachePattern(s.UserID())); err != nil {
		c.logger.Warn("analytics cache not invalidated", zap.String("user_id", s.UserID()), zap.Error(err))
	}
}
