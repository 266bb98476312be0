package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
)

var sampleFeed = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//timeblock//test//EN",
	"BEGIN:VEVENT",
	"UID:single-1",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240115T090000Z",
	"DTEND:20240115T100000Z",
	"SUMMARY:Standup",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly-1",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240101T140000Z",
	"DTEND:20240101T150000Z",
	"RRULE:FREQ=WEEKLY;COUNT=10",
	"EXDATE:20240115T140000Z",
	"SUMMARY:Review",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:weekly-1",
	"DTSTAMP:20240101T000000Z",
	"RECURRENCE-ID:20240122T140000Z",
	"DTSTART:20240122T160000Z",
	"DTEND:20240122T170000Z",
	"SUMMARY:Review moved",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:far-future",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20250101T090000Z",
	"DTEND:20250101T100000Z",
	"SUMMARY:Next year",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

func testWindow() models.DateWindow {
	return models.DateWindow{
		Start: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 24, 0, 0, 0, 0, time.UTC),
	}
}

func TestICSProviderFetchEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/calendar", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	provider := NewICSProvider(ICSFeed{Name: "work", URL: server.URL}, server.Client(), zap.NewNop())
	events, err := provider.FetchEvents(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "single-1", events[0].ID)
	assert.Equal(t, "Standup", events[0].Title)
	assert.Equal(t, "2024-01-15T09:00:00Z", events[0].Start)
	assert.Equal(t, models.SourceICS, events[0].Source)

	assert.Equal(t, "weekly-1@20240122T140000Z", events[1].ID)
	assert.Equal(t, "Review moved", events[1].Title)
	assert.Equal(t, "2024-01-22T16:00:00Z", events[1].Start)
	assert.Equal(t, "ics:work", provider.Name())
}

func TestICSProviderBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	provider := NewICSProvider(ICSFeed{URL: server.URL + "/private/secret-token.ics"}, nil, nil)
	_, err := provider.FetchEvents(context.Background(), testWindow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.NotContains(t, err.Error(), "secret-token")
	assert.Equal(t, "ics", provider.Name())
}

func TestICSProviderEmptyURL(t *testing.T) {
	_, err := NewICSProvider(ICSFeed{}, nil, nil).FetchEvents(context.Background(), testWindow())
	assert.Error(t, err)
}

func TestParseICSRejectsEmpty(t *testing.T) {
	_, err := parseICS(nil, zap.NewNop())
	assert.Error(t, err)
}

func TestExpandICSKeepsOccurrencesRunningIntoWindow(t *testing.T) {
	start := time.Date(2024, 1, 9, 22, 0, 0, 0, time.UTC)
	events := []icsEvent{{
		uid:     "nightly",
		summary: "Backup",
		start:   start,
		end:     start.Add(4 * time.Hour),
		rrule:   "FREQ=DAILY;COUNT=2",
	}}

	out := expandICS(events, testWindow(), zap.NewNop())
	require.Len(t, out, 2)
	assert.Equal(t, "nightly@20240109T220000Z", out[0].ID)
	assert.Equal(t, "2024-01-10T02:00:00Z", out[0].End)
}

func TestExpandICSSkipsInvalidRule(t *testing.T) {
	events := []icsEvent{{uid: "bad", start: testWindow().Start.Add(time.Hour), end: testWindow().Start.Add(2 * time.Hour), rrule: "FREQ=NEVER"}}
	assert.Empty(t, expandICS(events, testWindow(), zap.NewNop()))
}

func TestParseICSTime(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)

	utc, err := parseICSTime("20240115T090000Z", loc)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, utc.Location())

	local, err := parseICSTime("20240115T090000", loc)
	require.NoError(t, err)
	assert.Equal(t, 12, local.UTC().Hour())

	date, err := parseICSTime("20240115", loc)
	require.NoError(t, err)
	assert.Equal(t, 15, date.Day())

	_, err = parseICSTime(" ", loc)
	assert.Error(t, err)
}
