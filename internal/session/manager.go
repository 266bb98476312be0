package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

// StateRepository persists the session state of each user.
type StateRepository interface {
	// Load returns appErrors.ErrStateNotFound when nothing has been saved for userID.
	Load(ctx context.Context, userID string) (*models.SessionState, error)
	Save(ctx context.Context, userID string, state models.SessionState) error
}

// ManagerConfig tunes session lifecycle.
type ManagerConfig struct {
	Seed          bool
	IdleTimeout   time.Duration
	JanitorSpec   string
	Logger        *zap.Logger
	Clock         func() time.Time
	OnActiveCount func(int)
	OnSave        func(err error, duration time.Duration)
}

// Manager owns the live sessions, loading them on first use and writing them back.
type Manager struct {
	repo        StateRepository
	seed        bool
	idleTimeout time.Duration
	janitorSpec string
	logger      *zap.Logger
	now         func() time.Time
	onActive    func(int)
	onSave      func(error, time.Duration)

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a session manager.
func NewManager(repo StateRepository, cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.JanitorSpec == "" {
		cfg.JanitorSpec = "@every 1m"
	}
	return &Manager{
		repo:        repo,
		seed:        cfg.Seed,
		idleTimeout: cfg.IdleTimeout,
		janitorSpec: cfg.JanitorSpec,
		logger:      cfg.Logger,
		now:         cfg.Clock,
		onActive:    cfg.OnActiveCount,
		onSave:      cfg.OnSave,
		sessions:    make(map[string]*Session),
	}
}

// Get returns the live session of userID, loading or creating it when needed.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing user identity")
	}
	now := m.now()

	// touching under m.mu keeps Evict from dropping a session it has just handed out
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		s.Touch(now)
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	state, err := m.repo.Load(ctx, userID)
	if err != nil && !errors.Is(err, appErrors.ErrStateNotFound) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session state")
	}
	loaded := New(userID, state, m.seed, now)

	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		// another request loaded it first
		s.Touch(now)
		m.mu.Unlock()
		return s, nil
	}
	m.sessions[userID] = loaded
	active := len(m.sessions)
	m.mu.Unlock()

	m.reportActive(active)
	if state == nil {
		m.logger.Debug("session created", zap.String("user_id", userID), zap.Bool("seeded", m.seed))
	}
	return loaded, nil
}

// Persist writes s to the repository when it has unsaved changes.
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if !s.Dirty() {
		return nil
	}
	state, version := s.State(m.now().UTC())
	start := time.Now()
	err := m.repo.Save(ctx, s.UserID(), state)
	if m.onSave != nil {
		m.onSave(err, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.UserID(), err)
	}
	s.MarkSaved(version)
	return nil
}

// Flush persists every dirty session.
func (m *Manager) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m.live() {
		if err := m.Persist(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Evict persists and drops sessions idle for longer than the idle timeout.
// Sessions that fail to save stay live so no change is lost.
func (m *Manager) Evict(ctx context.Context) int {
	cutoff := m.now().Add(-m.idleTimeout)
	evicted := 0
	for _, s := range m.live() {
		if s.LastSeen().After(cutoff) {
			continue
		}
		if err := m.Persist(ctx, s); err != nil {
			m.logger.Warn("failed to persist idle session", zap.String("user_id", s.UserID()), zap.Error(err))
			continue
		}
		// a request may have picked the session up while it was being saved
		m.mu.Lock()
		if current, ok := m.sessions[s.UserID()]; ok && current == s && !s.Dirty() && !s.LastSeen().After(cutoff) {
			delete(m.sessions, s.UserID())
			evicted++
		}
		m.mu.Unlock()
	}
	if evicted > 0 {
		m.reportActive(m.Len())
	}
	return evicted
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartJanitor schedules periodic flush and eviction. The returned function stops the
// schedule and performs a final flush.
func (m *Manager) StartJanitor(ctx context.Context) (func(), error) {
	c := cron.New()
	if _, err := c.AddFunc(m.janitorSpec, func() { m.sweep(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule session janitor: %w", err)
	}
	c.Start()
	m.logger.Info("session janitor started", zap.String("schedule", m.janitorSpec))

	return func() {
		<-c.Stop().Done()
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.Flush(flushCtx); err != nil {
			m.logger.Error("final session flush failed", zap.Error(err))
		}
		m.logger.Info("session janitor stopped")
	}, nil
}

func (m *Manager) sweep(ctx context.Context) {
	if err := m.Flush(ctx); err != nil {
		m.logger.Warn("session flush failed", zap.Error(err))
	}
	if n := m.Evict(ctx); n > 0 {
		m.logger.Debug("idle sessions evicted", zap.Int("count", n))
	}
}

func (m *Manager) live() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) reportActive(n int) {
	if m.onActive != nil {
		m.onActive(n)
	}
}
