package external

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/noah-isme/timeblock-api/internal/models"
)

const defaultGoogleCalendarID = "primary"

type googleEventLister interface {
	ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error)
}

type googleServiceLister struct {
	service *calendar.Service
}

func (l googleServiceLister) ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	var items []*calendar.Event
	call := l.service.Events.List(calendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime")
	err := call.Pages(ctx, func(page *calendar.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GoogleProvider reads events from a Google Calendar using service account credentials.
type GoogleProvider struct {
	lister     googleEventLister
	calendarID string
}

// NewGoogleProvider builds a provider from service account JSON credentials.
func NewGoogleProvider(ctx context.Context, credentialsJSON []byte, calendarID string) (*GoogleProvider, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("load google credentials: %w", err)
	}
	service, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create google calendar service: %w", err)
	}
	return newGoogleProvider(googleServiceLister{service: service}, calendarID), nil
}

func newGoogleProvider(lister googleEventLister, calendarID string) *GoogleProvider {
	if calendarID == "" {
		calendarID = defaultGoogleCalendarID
	}
	return &GoogleProvider{lister: lister, calendarID: calendarID}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string {
	return string(models.SourceGoogle)
}

// FetchEvents implements Provider.
func (p *GoogleProvider) FetchEvents(ctx context.Context, window models.DateWindow) ([]models.ExternalEvent, error) {
	items, err := p.lister.ListEvents(ctx, p.calendarID, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	events := make([]models.ExternalEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, convertGoogleEvent(item))
	}
	return events, nil
}

// convertGoogleEvent keeps timed and all-day values raw; an event missing both is left
// empty so conversion substitutes the current instant.
func convertGoogleEvent(item *calendar.Event) models.ExternalEvent {
	return models.ExternalEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Start:       googleEventTime(item.Start),
		End:         googleEventTime(item.End),
		Description: item.Description,
		Source:      models.SourceGoogle,
	}
}

func googleEventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
