// Package external fetches events from third-party calendars and converts them into
// read-only time blocks.
package external

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// Provider fetches the raw events of one external calendar within a window.
type Provider interface {
	Name() string
	FetchEvents(ctx context.Context, window models.DateWindow) ([]models.ExternalEvent, error)
}

// FetchError reports a failed fetch from a named provider.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s events: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MultiProvider fans a fetch out to several providers and concatenates their events in
// provider order. Any provider failure fails the whole fetch so a partial set never
// replaces a complete one.
type MultiProvider struct {
	providers []Provider
}

// NewMultiProvider combines providers.
func NewMultiProvider(providers ...Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

// Name implements Provider.
func (m *MultiProvider) Name() string {
	return "multi"
}

// Len returns the number of combined providers.
func (m *MultiProvider) Len() int {
	return len(m.providers)
}

// FetchEvents implements Provider.
func (m *MultiProvider) FetchEvents(ctx context.Context, window models.DateWindow) ([]models.ExternalEvent, error) {
	var (
		out  []models.ExternalEvent
		errs []error
	)
	for _, p := range m.providers {
		events, err := p.FetchEvents(ctx, window)
		if err != nil {
			errs = append(errs, &FetchError{Provider: p.Name(), Err: err})
			continue
		}
		out = append(out, events...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
