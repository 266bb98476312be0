package session

import (
	"sync"
	"time"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// Snapshot is a consistent read of a session used to compute derived views.
type Snapshot struct {
	Blocks         []models.TimeBlock
	Filters        models.CategoryFilter
	External       []models.TimeBlock
	ExternalWindow models.DateWindow
	ExternalGen    uint64
	// ExternalPending is set while a fetch for a newer window is in flight.
	ExternalPending bool
	Theme           models.Theme
	Auth            models.AuthSnapshot
	// Version changes with every mutation of blocks, filters, theme or auth.
	Version uint64
}

// Session is the state container of one user: time blocks, filters, preferences and the
// most recently applied external events. All methods are safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	userID  string
	store   *Store
	filters *Filters
	theme   models.Theme
	auth    models.AuthSnapshot

	external       []models.TimeBlock
	externalWindow models.DateWindow
	// requestedGen is the generation of the newest fetch issued; appliedGen of the one displayed.
	requestedGen    uint64
	requestedWindow models.DateWindow
	inFlight        bool
	appliedGen      uint64

	version      uint64
	savedVersion uint64
	lastSeen     time.Time
}

// New builds a session from persisted state. A nil state yields a fresh session, seeded
// with example blocks when seed is set.
func New(userID string, state *models.SessionState, seed bool, now time.Time) *Session {
	s := &Session{
		userID:   userID,
		theme:    models.ThemeLight,
		auth:     models.AuthSnapshot{Status: models.AuthStatusIdle},
		lastSeen: now,
	}
	if state == nil {
		if seed {
			s.store = NewSeededStore(now)
		} else {
			s.store = NewStore(nil)
		}
		s.filters = NewFilters()
		// fresh sessions have never been saved
		s.version = 1
		return s
	}

	s.store = NewStore(state.Blocks)
	s.filters = RestoreFilters(state.Filters)
	if state.Theme != "" {
		s.theme = state.Theme
	}
	if state.Auth.Status != "" {
		s.auth = state.Auth
	}
	return s
}

// UserID returns the owner of the session.
func (s *Session) UserID() string {
	return s.userID
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	external := make([]models.TimeBlock, len(s.external))
	copy(external, s.external)
	return Snapshot{
		Blocks:          s.store.List(),
		Filters:         s.filters.Snapshot(),
		External:        external,
		ExternalWindow:  s.externalWindow,
		ExternalGen:     s.appliedGen,
		ExternalPending: s.inFlight,
		Theme:           s.theme,
		Auth:            s.auth,
		Version:         s.version,
	}
}

// Block returns the block with id.
func (s *Session) Block(id string) (models.TimeBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Get(id)
}

// AddBlock appends a validated block.
func (s *Session) AddBlock(block models.TimeBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Add(block)
	s.version++
}

// UpdateBlock replaces a block in place. Unknown ids are ignored.
func (s *Session) UpdateBlock(block models.TimeBlock) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Update(block) {
		return false
	}
	s.version++
	return true
}

// DeleteBlock removes a block. Unknown ids are ignored.
func (s *Session) DeleteBlock(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Delete(id) {
		return false
	}
	s.version++
	return true
}

// ToggleFilter flips a category flag.
func (s *Session) ToggleFilter(category models.Category) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	visible, err := s.filters.Toggle(category)
	if err != nil {
		return false, err
	}
	s.version++
	return visible, nil
}

// SetFilter assigns a category flag.
func (s *Session) SetFilter(category models.Category, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.filters.Set(category, visible); err != nil {
		return err
	}
	s.version++
	return nil
}

// ResetFilters makes every category visible.
func (s *Session) ResetFilters() models.CategoryFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters.Reset()
	s.version++
	return s.filters.Snapshot()
}

// SetTheme stores the theme preference.
func (s *Session) SetTheme(theme models.Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == theme {
		return
	}
	s.theme = theme
	s.version++
}

// SetUser records the authenticated identity and reports whether it changed.
func (s *Session) SetUser(identity models.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auth.IsAuthenticated && s.auth.User != nil && sameIdentity(*s.auth.User, identity) {
		return false
	}
	user := identity
	s.auth = models.AuthSnapshot{User: &user, IsAuthenticated: true, Status: models.AuthStatusChecked}
	s.version++
	return true
}

// ClearAuth drops the authenticated identity.
func (s *Session) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = models.AuthSnapshot{Status: models.AuthStatusChecked}
	s.version++
}

// NeedsExternalFetch reports whether window differs from both the displayed external
// events and the fetch currently in flight.
func (s *Session) NeedsExternalFetch(window models.DateWindow) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.inFlight && s.requestedWindow.Equal(window) {
		return false
	}
	if s.appliedGen > 0 && !s.inFlight && s.externalWindow.Equal(window) {
		return false
	}
	return true
}

// BeginExternalFetch registers a fetch for window and returns its generation. Results of
// any earlier generation are discarded from then on.
func (s *Session) BeginExternalFetch(window models.DateWindow) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestedGen++
	s.requestedWindow = window
	s.inFlight = true
	return s.requestedGen
}

// IsCurrentFetch reports whether gen is still the newest fetch.
func (s *Session) IsCurrentFetch(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.requestedGen
}

// ApplyExternal replaces the external events with blocks fetched for window, unless a newer
// fetch has been issued since gen. It reports whether the result was applied.
func (s *Session) ApplyExternal(gen uint64, window models.DateWindow, blocks []models.TimeBlock) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.requestedGen || !s.requestedWindow.Equal(window) {
		return false
	}
	s.external = make([]models.TimeBlock, len(blocks))
	copy(s.external, blocks)
	s.externalWindow = window
	s.appliedGen = gen
	s.inFlight = false
	return true
}

// FailExternal ends the fetch gen without touching the displayed external events.
func (s *Session) FailExternal(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.requestedGen {
		s.inFlight = false
	}
}

// ExternalWindow returns the window of the displayed external events.
func (s *Session) ExternalWindow() models.DateWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.externalWindow
}

// State returns the persisted form of the session together with its version.
func (s *Session) State(now time.Time) (models.SessionState, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var user *models.Identity
	if s.auth.User != nil {
		copied := *s.auth.User
		user = &copied
	}
	return models.SessionState{
		Blocks:  s.store.List(),
		Filters: s.filters.Snapshot(),
		Theme:   s.theme,
		Auth:    models.AuthSnapshot{User: user, IsAuthenticated: s.auth.IsAuthenticated, Status: s.auth.Status},
		SavedAt: now,
	}, s.version
}

// Dirty reports whether the session changed since its last save.
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.savedVersion
}

// MarkSaved records that the state at version has been persisted.
func (s *Session) MarkSaved(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

// LastSeen returns the time of the latest activity.
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

func sameIdentity(a, b models.Identity) bool {
	if a.UserID != b.UserID {
		return false
	}
	if a.Email == nil || b.Email == nil {
		return a.Email == nil && b.Email == nil
	}
	return *a.Email == *b.Email
}
