package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/session"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/jobs"
)

type stubSessions struct {
	mu         sync.Mutex
	sessions   map[string]*session.Session
	persisted  int
	persistErr error
	getErr     error
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: make(map[string]*session.Session)}
}

func (s *stubSessions) Get(_ context.Context, userID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	if sess, ok := s.sessions[userID]; ok {
		return sess, nil
	}
	sess := session.New(userID, &models.SessionState{}, false, time.Now())
	s.sessions[userID] = sess
	return sess, nil
}

func (s *stubSessions) Persist(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistErr != nil {
		return s.persistErr
	}
	s.persisted++
	_, version := sess.State(time.Now())
	sess.MarkSaved(version)
	return nil
}

type stubCacheRepo struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{data: make(map[string][]byte)}
}

func (r *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = raw
	return nil
}

func (r *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.data {
		if strings.HasPrefix(key, prefix) {
			delete(r.data, key)
		}
	}
	return nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) last() jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[len(q.jobs)-1]
}

func (q *stubQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type stubProvider struct {
	mu     sync.Mutex
	events []models.ExternalEvent
	err    error
	calls  int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchEvents(context.Context, models.DateWindow) ([]models.ExternalEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.events, p.err
}

func newCache(repo CacheRepository) *CacheService {
	return NewCacheService(repo, NewMetricsService(), time.Minute, nil, repo != nil)
}
