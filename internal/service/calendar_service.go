package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/external"
	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/session"
	"github.com/noah-isme/timeblock-api/internal/views"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/jobs"
)

// ExternalRefreshJobType identifies queued external calendar refreshes.
const ExternalRefreshJobType = "external_refresh"

// ExternalRefreshPayload is the queue payload of an external calendar refresh.
type ExternalRefreshPayload struct {
	UserID string
	Window models.DateWindow
	Gen    uint64
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// CalendarConfig tunes calendar rendering and external refresh.
type CalendarConfig struct {
	ExternalEnabled bool
	WindowPadding   time.Duration
}

// CalendarView is the calendar read model for one selected date.
type CalendarView struct {
	Date            time.Time              `json:"date"`
	Window          models.DateWindow      `json:"window"`
	Events          []models.CalendarEvent `json:"events"`
	ExternalWindow  *models.DateWindow     `json:"external_window,omitempty"`
	ExternalPending bool                   `json:"external_pending"`
}

// CalendarService renders calendar views and schedules external calendar refreshes.
type CalendarService struct {
	sessions sessionManager
	queue    jobDispatcher
	worker   *ExternalRefreshWorker
	cfg      CalendarConfig
	logger   *zap.Logger
}

// NewCalendarService constructs the calendar service. queue and worker may be nil when
// external calendars are disabled.
func NewCalendarService(sessions sessionManager, queue jobDispatcher, worker *ExternalRefreshWorker, cfg CalendarConfig, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowPadding <= 0 {
		cfg.WindowPadding = models.DefaultWindowPadding
	}
	if queue == nil || worker == nil {
		cfg.ExternalEnabled = false
	}
	return &CalendarService{sessions: sessions, queue: queue, worker: worker, cfg: cfg, logger: logger}
}

// ExternalEnabled reports whether external calendars are configured.
func (s *CalendarService) ExternalEnabled() bool {
	return s.cfg.ExternalEnabled
}

// Events returns the visible blocks plus the external events for the window around date.
// When the window differs from the one last fetched, a background refresh is queued and the
// previous external events are returned meanwhile.
func (s *CalendarService) Events(ctx context.Context, userID string, date time.Time) (*CalendarView, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	window := models.WindowAround(date, s.cfg.WindowPadding)
	if s.cfg.ExternalEnabled && sess.NeedsExternalFetch(window) {
		s.schedule(sess, window)
	}
	return buildCalendarView(sess.Snapshot(), date, window), nil
}

// RefreshExternal fetches external events for the window around date synchronously. On
// failure the previously displayed external events are kept.
func (s *CalendarService) RefreshExternal(ctx context.Context, userID string, date time.Time) (*CalendarView, error) {
	if !s.cfg.ExternalEnabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "external calendars are not configured")
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	window := models.WindowAround(date, s.cfg.WindowPadding)
	gen := sess.BeginExternalFetch(window)
	if err := s.worker.Refresh(ctx, sess, gen, window); err != nil {
		sess.FailExternal(gen)
		return nil, appErrors.Wrap(err, appErrors.ErrExternalUnavailable.Code, appErrors.ErrExternalUnavailable.Status, "failed to fetch external events")
	}
	return buildCalendarView(sess.Snapshot(), date, window), nil
}

func (s *CalendarService) schedule(sess *session.Session, window models.DateWindow) {
	gen := sess.BeginExternalFetch(window)
	err := s.queue.Enqueue(jobs.Job{
		Type:    ExternalRefreshJobType,
		Payload: ExternalRefreshPayload{UserID: sess.UserID(), Window: window, Gen: gen},
	})
	if err != nil {
		sess.FailExternal(gen)
		s.logger.Warn("failed to enqueue external refresh", zap.String("user_id", sess.UserID()), zap.Error(err))
	}
}

func buildCalendarView(snap session.Snapshot, date time.Time, window models.DateWindow) *CalendarView {
	view := &CalendarView{
		Date:            date,
		Window:          window,
		Events:          views.CalendarEvents(snap.Blocks, snap.Filters, snap.External),
		ExternalPending: snap.ExternalPending,
	}
	if snap.ExternalGen > 0 {
		applied := snap.ExternalWindow
		view.ExternalWindow = &applied
	}
	return view
}

// ExternalRefreshWorker fetches external events and applies them to sessions, discarding
// results that a newer fetch has superseded.
type ExternalRefreshWorker struct {
	sessions sessionManager
	provider external.Provider
	metrics  *MetricsService
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewExternalRefreshWorker constructs a worker.
func NewExternalRefreshWorker(sessions sessionManager, provider external.Provider, metrics *MetricsService, timeout time.Duration, logger *zap.Logger) *ExternalRefreshWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ExternalRefreshWorker{
		sessions: sessions,
		provider: provider,
		metrics:  metrics,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes a queued refresh.
func (w *ExternalRefreshWorker) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(ExternalRefreshPayload)
	if !ok {
		w.logger.Error("unexpected external refresh payload", zap.String("job_id", job.ID))
		return nil
	}
	sess, err := w.sessions.Get(ctx, payload.UserID)
	if err != nil {
		return err
	}
	return w.Refresh(ctx, sess, payload.Gen, payload.Window)
}

// Drop ends a refresh whose retries are exhausted so the next calendar read can schedule
// another one.
func (w *ExternalRefreshWorker) Drop(job jobs.Job, _ error) {
	payload, ok := job.Payload.(ExternalRefreshPayload)
	if !ok {
		return
	}
	sess, err := w.sessions.Get(context.Background(), payload.UserID)
	if err != nil {
		return
	}
	sess.FailExternal(payload.Gen)
}

// Refresh fetches events for window and applies them under generation gen. A generation
// superseded before or during the fetch is skipped without error.
func (w *ExternalRefreshWorker) Refresh(ctx context.Context, sess *session.Session, gen uint64, window models.DateWindow) error {
	if !sess.IsCurrentFetch(gen) {
		w.logger.Debug("external refresh superseded", zap.String("user_id", sess.UserID()), zap.Uint64("gen", gen))
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	start := time.Now()
	events, err := w.provider.FetchEvents(fetchCtx, window)
	w.metrics.ObserveExternalFetch(err, time.Since(start))
	if err != nil {
		return fmt.Errorf("fetch external events from %s: %w", w.provider.Name(), err)
	}

	blocks := external.ToTimeBlocks(events, w.now().UTC())
	if !sess.ApplyExternal(gen, window, blocks) {
		w.logger.Debug("stale external events discarded", zap.String("user_id", sess.UserID()), zap.Uint64("gen", gen))
		return nil
	}
	w.logger.Debug("external events applied",
		zap.String("user_id", sess.UserID()),
		zap.Int("count", len(blocks)),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)
	return nil
}
