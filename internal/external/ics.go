package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
)

const (
	defaultICSTimeout      = 15 * time.Second
	maxICSBodyBytes        = 10 << 20
	maxOccurrencesPerEvent = 1000
	icsUTCLayout           = "20060102T150405Z"
	icsLocalLayout         = "20060102T150405"
	icsDateLayout          = "20060102"
)

// ICSFeed is one subscribed iCalendar URL.
type ICSFeed struct {
	Name string
	URL  string
}

// ICSProvider reads events from an iCalendar feed, expanding recurring events within the
// requested window.
type ICSProvider struct {
	feed   ICSFeed
	client *http.Client
	logger *zap.Logger
}

// NewICSProvider builds a provider for feed. A nil client gets a default timeout.
func NewICSProvider(feed ICSFeed, client *http.Client, logger *zap.Logger) *ICSProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultICSTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ICSProvider{feed: feed, client: client, logger: logger}
}

// Name implements Provider.
func (p *ICSProvider) Name() string {
	if p.feed.Name != "" {
		return "ics:" + p.feed.Name
	}
	return string(models.SourceICS)
}

// FetchEvents implements Provider.
func (p *ICSProvider) FetchEvents(ctx context.Context, window models.DateWindow) ([]models.ExternalEvent, error) {
	body, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	parsed, err := parseICS(body, p.logger)
	if err != nil {
		return nil, err
	}
	return expandICS(parsed, window, p.logger), nil
}

func (p *ICSProvider) fetch(ctx context.Context) ([]byte, error) {
	if p.feed.URL == "" {
		return nil, errors.New("ics feed url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feed.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics feed %s returned status %d", redactURL(p.feed.URL), resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxICSBodyBytes))
}

type icsEvent struct {
	uid         string
	summary     string
	description string
	start       time.Time
	end         time.Time
	allDay      bool
	rrule       string
	exDates     []time.Time
	recurrence  *time.Time
}

func parseICS(body []byte, logger *zap.Logger) ([]icsEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ics body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	events := make([]icsEvent, 0)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve)
		if err != nil {
			logger.Debug("skipping vevent", zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (icsEvent, error) {
	var out icsEvent
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.uid = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.description = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("uid %s: %w", out.uid, err)
	}
	out.start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.end = end
	}

	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.allDay = true
		}
		if !strings.Contains(dtStart.Value, "T") {
			out.allDay = true
		}
	}
	if out.end.IsZero() || !out.end.After(out.start) {
		if out.allDay {
			out.end = out.start.Add(24 * time.Hour)
		} else {
			out.end = out.start
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, out.start.Location()); err == nil {
				out.exDates = append(out.exDates, t)
			}
		}
	}
	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, out.start.Location()); err == nil {
			out.recurrence = &t
		}
	}
	return out, nil
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse(icsUTCLayout, v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation(icsLocalLayout, v, loc)
	default:
		return time.ParseInLocation(icsDateLayout, v, loc)
	}
}

// expandICS turns parsed VEVENTs into concrete occurrences overlapping window. Overrides
// (RECURRENCE-ID) replace the occurrence they point at.
func expandICS(events []icsEvent, window models.DateWindow, logger *zap.Logger) []models.ExternalEvent {
	overrides := make(map[string][]icsEvent)
	base := make([]icsEvent, 0, len(events))
	for _, ev := range events {
		if ev.recurrence != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
			continue
		}
		base = append(base, ev)
	}

	out := make([]models.ExternalEvent, 0, len(base))
	for _, ev := range base {
		if ev.rrule == "" {
			if overlaps(ev.start, ev.end, window) {
				out = append(out, toExternalEvent(ev, ev.uid))
			}
			continue
		}

		rule, err := rrule.StrToRRule(ev.rrule)
		if err != nil {
			logger.Debug("skipping invalid rrule", zap.String("uid", ev.uid), zap.Error(err))
			continue
		}
		rule.DTStart(ev.start)
		var set rrule.Set
		set.RRule(rule)
		for _, ex := range ev.exDates {
			set.ExDate(ex.In(ev.start.Location()))
		}

		duration := ev.end.Sub(ev.start)
		// widen by the event duration so occurrences that started before the window but
		// still run into it are kept
		occurrences := set.Between(window.Start.Add(-duration).In(ev.start.Location()), window.End.In(ev.start.Location()), true)
		if len(occurrences) > maxOccurrencesPerEvent {
			occurrences = occurrences[:maxOccurrencesPerEvent]
		}
		for _, occStart := range occurrences {
			occ := ev
			occ.start = occStart
			occ.end = occStart.Add(duration)
			if o, ok := findOverride(overrides[ev.uid], occStart); ok {
				occ = o
			}
			if overlaps(occ.start, occ.end, window) {
				out = append(out, toExternalEvent(occ, ev.uid+"@"+occStart.UTC().Format(icsUTCLayout)))
			}
		}
	}
	return out
}

func findOverride(overrides []icsEvent, occStart time.Time) (icsEvent, bool) {
	for _, o := range overrides {
		if o.recurrence != nil && o.recurrence.Equal(occStart) {
			return o, true
		}
	}
	return icsEvent{}, false
}

func overlaps(start, end time.Time, window models.DateWindow) bool {
	return !end.Before(window.Start) && !start.After(window.End)
}

func toExternalEvent(ev icsEvent, id string) models.ExternalEvent {
	return models.ExternalEvent{
		ID:          id,
		Title:       ev.summary,
		Start:       ev.start.Format(time.RFC3339),
		End:         ev.end.Format(time.RFC3339),
		Description: ev.description,
		Source:      models.SourceICS,
	}
}

// redactURL keeps only scheme and host so feed tokens never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
