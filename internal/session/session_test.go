package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

func window(day int) models.DateWindow {
	date := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
	return models.WindowAround(date, 0)
}

func TestSessionExternalGenerationGuard(t *testing.T) {
	s := New("u1", nil, false, time.Now())

	first := s.BeginExternalFetch(window(1))
	second := s.BeginExternalFetch(window(20))
	assert.False(t, s.IsCurrentFetch(first))
	assert.True(t, s.IsCurrentFetch(second))

	applied := s.ApplyExternal(first, window(1), []models.TimeBlock{{ID: "stale"}})
	assert.False(t, applied)
	assert.Empty(t, s.Snapshot().External)
	assert.True(t, s.Snapshot().ExternalPending)

	applied = s.ApplyExternal(second, window(20), []models.TimeBlock{{ID: "fresh", Category: models.CategoryExternal}})
	require.True(t, applied)
	snap := s.Snapshot()
	require.Len(t, snap.External, 1)
	assert.Equal(t, "fresh", snap.External[0].ID)
	assert.Equal(t, second, snap.ExternalGen)
	assert.False(t, snap.ExternalPending)
	assert.True(t, window(20).Equal(s.ExternalWindow()))
}

func TestSessionFailExternalKeepsPrevious(t *testing.T) {
	s := New("u1", nil, false, time.Now())
	gen := s.BeginExternalFetch(window(1))
	require.True(t, s.ApplyExternal(gen, window(1), []models.TimeBlock{{ID: "kept"}}))

	gen = s.BeginExternalFetch(window(10))
	s.FailExternal(gen)

	snap := s.Snapshot()
	require.Len(t, snap.External, 1)
	assert.Equal(t, "kept", snap.External[0].ID)
	assert.False(t, snap.ExternalPending)
	assert.True(t, window(1).Equal(snap.ExternalWindow))
}

func TestSessionNeedsExternalFetch(t *testing.T) {
	s := New("u1", nil, false, time.Now())
	assert.True(t, s.NeedsExternalFetch(window(1)))

	gen := s.BeginExternalFetch(window(1))
	assert.False(t, s.NeedsExternalFetch(window(1)))
	assert.True(t, s.NeedsExternalFetch(window(2)))

	s.ApplyExternal(gen, window(1), nil)
	assert.False(t, s.NeedsExternalFetch(window(1)))
	assert.True(t, s.NeedsExternalFetch(window(2)))
}

func TestSessionVersioning(t *testing.T) {
	s := New("u1", &models.SessionState{}, false, time.Now())
	assert.False(t, s.Dirty())

	s.AddBlock(block("a", models.CategoryCLT, 9, 10))
	assert.True(t, s.Dirty())

	state, version := s.State(time.Now())
	require.Len(t, state.Blocks, 1)
	s.MarkSaved(version)
	assert.False(t, s.Dirty())

	assert.False(t, s.UpdateBlock(block("missing", models.CategoryPJ, 1, 2)))
	assert.False(t, s.DeleteBlock("missing"))
	s.SetTheme(models.ThemeLight)
	assert.False(t, s.Dirty())

	s.SetTheme(models.ThemeDark)
	assert.True(t, s.Dirty())
}

func TestSessionFreshIsDirty(t *testing.T) {
	s := New("u1", nil, true, time.Now())
	assert.True(t, s.Dirty())
	assert.Len(t, s.Snapshot().Blocks, 6)
	assert.Equal(t, models.ThemeLight, s.Snapshot().Theme)
	assert.Equal(t, models.AuthStatusIdle, s.Snapshot().Auth.Status)
}

func TestSessionSetUser(t *testing.T) {
	s := New("u1", &models.SessionState{}, false, time.Now())
	email := "ana@example.com"
	identity := models.Identity{UserID: "u1", Email: &email}

	assert.True(t, s.SetUser(identity))
	assert.False(t, s.SetUser(identity))
	auth := s.Snapshot().Auth
	assert.True(t, auth.IsAuthenticated)
	assert.Equal(t, models.AuthStatusChecked, auth.Status)

	s.ClearAuth()
	auth = s.Snapshot().Auth
	assert.False(t, auth.IsAuthenticated)
	assert.Nil(t, auth.User)
	assert.True(t, s.SetUser(identity))
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := New("u1", nil, false, time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddBlock(models.TimeBlock{ID: string(rune('a' + i)), Category: models.CategoryCLT})
			_ = s.Snapshot()
			_, _ = s.ToggleFilter(models.CategoryPJ)
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Snapshot().Blocks, 20)
}

type stubStateRepo struct {
	mu      sync.Mutex
	states  map[string]models.SessionState
	saves   int
	loadErr error
	saveErr error
	// onSave runs once before the next save is recorded.
	onSave func()
}

func newStubStateRepo() *stubStateRepo {
	return &stubStateRepo{states: make(map[string]models.SessionState)}
}

func (r *stubStateRepo) Load(_ context.Context, userID string) (*models.SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	state, ok := r.states[userID]
	if !ok {
		return nil, appErrors.ErrStateNotFound
	}
	return &state, nil
}

func (r *stubStateRepo) Save(_ context.Context, userID string, state models.SessionState) error {
	r.mu.Lock()
	hook := r.onSave
	r.onSave = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.states[userID] = state
	return nil
}

func TestManagerGetLoadsOnce(t *testing.T) {
	repo := newStubStateRepo()
	repo.states["u1"] = models.SessionState{
		Blocks: []models.TimeBlock{block("a", models.CategoryCLT, 9, 10)},
		Theme:  models.ThemeDark,
	}
	var active int
	manager := NewManager(repo, ManagerConfig{OnActiveCount: func(n int) { active = n }})

	first, err := manager.Get(context.Background(), "u1")
	require.NoError(t, err)
	second, err := manager.Get(context.Background(), "u1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, models.ThemeDark, first.Snapshot().Theme)
	assert.Len(t, first.Snapshot().Blocks, 1)
	assert.Equal(t, 1, active)
}

func TestManagerGetRequiresUser(t *testing.T) {
	manager := NewManager(newStubStateRepo(), ManagerConfig{})
	_, err := manager.Get(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestManagerGetLoadError(t *testing.T) {
	repo := newStubStateRepo()
	repo.loadErr = errors.New("db down")
	manager := NewManager(repo, ManagerConfig{})

	_, err := manager.Get(context.Background(), "u1")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestManagerPersistOnlyWhenDirty(t *testing.T) {
	repo := newStubStateRepo()
	var observed []error
	manager := NewManager(repo, ManagerConfig{OnSave: func(err error, _ time.Duration) { observed = append(observed, err) }})

	s, err := manager.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NoError(t, manager.Persist(context.Background(), s))
	require.NoError(t, manager.Persist(context.Background(), s))

	assert.Equal(t, 1, repo.saves)
	assert.Len(t, observed, 1)
	assert.False(t, s.Dirty())
}

func TestManagerPersistFailureKeepsDirty(t *testing.T) {
	repo := newStubStateRepo()
	repo.saveErr = errors.New("disk full")
	manager := NewManager(repo, ManagerConfig{})

	s, err := manager.Get(context.Background(), "u1")
	require.NoError(t, err)
	err = manager.Persist(context.Background(), s)
	require.Error(t, err)
	assert.True(t, s.Dirty())
	assert.Error(t, manager.Flush(context.Background()))
}

func TestManagerEvict(t *testing.T) {
	repo := newStubStateRepo()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	manager := NewManager(repo, ManagerConfig{
		IdleTimeout: time.Minute,
		Clock:       func() time.Time { return now },
	})

	_, err := manager.Get(context.Background(), "idle")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = manager.Get(context.Background(), "active")
	require.NoError(t, err)

	evicted := manager.Evict(context.Background())
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, manager.Len())
	_, saved := repo.states["idle"]
	assert.True(t, saved)
}

func TestManagerEvictKeepsSessionFetchedDuringSave(t *testing.T) {
	repo := newStubStateRepo()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	manager := NewManager(repo, ManagerConfig{
		IdleTimeout: time.Minute,
		Clock:       func() time.Time { return now },
	})
	ctx := context.Background()

	original, err := manager.Get(ctx, "u1")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)

	var during *Session
	repo.onSave = func() {
		during, err = manager.Get(ctx, "u1")
	}

	assert.Equal(t, 0, manager.Evict(ctx))
	require.NoError(t, err)
	assert.Same(t, original, during)
	assert.Equal(t, 1, manager.Len())

	during.AddBlock(block("late", models.CategoryPJ, 9, 10))
	repo.saveErr = errors.New("db down")
	assert.Error(t, manager.Persist(ctx, during))

	repo.saveErr = nil
	require.NoError(t, manager.Flush(ctx))
	require.Len(t, repo.states["u1"].Blocks, 1)
	assert.Equal(t, "late", repo.states["u1"].Blocks[0].ID)
}

func TestManagerStartJanitorInvalidSpec(t *testing.T) {
	manager := NewManager(newStubStateRepo(), ManagerConfig{JanitorSpec: "not a schedule"})
	_, err := manager.StartJanitor(context.Background())
	assert.Error(t, err)
}

func TestManagerJanitorStopFlushes(t *testing.T) {
	repo := newStubStateRepo()
	manager := NewManager(repo, ManagerConfig{JanitorSpec: "@every 1h"})
	_, err := manager.Get(context.Background(), "u1")
	require.NoError(t, err)

	stop, err := manager.StartJanitor(context.Background())
	require.NoError(t, err)
	stop()

	assert.Equal(t, 1, repo.saves)
}
