package external

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
)

// BreakerConfig tunes the circuit breaker around a provider.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns conservative breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// BreakerProvider stops calling a failing provider until its timeout elapses.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps next with a circuit breaker.
func NewBreakerProvider(next Provider, cfg BreakerConfig, logger *zap.Logger) *BreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = defaults.MinRequests
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("external provider breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// a cancelled request says nothing about the provider's health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerProvider{next: next, cb: cb}
}

// Name implements Provider.
func (b *BreakerProvider) Name() string {
	return b.next.Name()
}

// State returns the breaker state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}

// FetchEvents implements Provider. An open breaker fails fast with gobreaker.ErrOpenState.
func (b *BreakerProvider) FetchEvents(ctx context.Context, window models.DateWindow) ([]models.ExternalEvent, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		events, err := b.next.FetchEvents(ctx, window)
		if err != nil {
			return nil, err
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	events, _ := result.([]models.ExternalEvent)
	return events, nil
}
