package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"telemetry-bridge/internal/models"
)

// BreakerConfig tunes when the breaker opens and how long it stays open
type BreakerConfig struct {
	// ConsecutiveFailures opens the breaker
	ConsecutiveFailures uint32
	// OpenTimeout is how long to wait before letting a probe through
	OpenTimeout time.Duration
}

// DefaultBreakerConfig opens after 5 straight failures and probes after 30s
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// Guarded fronts a store with a circuit breaker. Every failure, including
// fast rejections while the breaker is open, is reported as ErrUnavailable.
// Cancellation is returned as is and never counts against the store.
type Guarded struct {
	next ReadWriter
	cb   *gobreaker.CircuitBreaker
	log  *slog.Logger
}

// NewGuarded wraps next with a circuit breaker named name
func NewGuarded(name string, next ReadWriter, cfg BreakerConfig, log *slog.Logger) *Guarded {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	g := &Guarded{next: next, log: log}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// A caller walking away says nothing about the store's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return g
}

// State returns the breaker state
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guarded) FetchWindow(ctx context.Context, channel string, maxRows int) ([]models.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.FetchWindow(ctx, channel, maxRows)
	})
	if err != nil {
		return nil, unavailable(ctx, err)
	}
	return out.([]models.Sample), nil
}

func (g *Guarded) AppendReadings(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.AppendReadings(ctx, records)
	})
	if err != nil {
		return unavailable(ctx, err)
	}
	return nil
}

func (g *Guarded) AppendCommand(ctx context.Context, rec CommandRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.AppendCommand(ctx, rec)
	})
	if err != nil {
		return unavailable(ctx, err)
	}
	return nil
}

func unavailable(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return err
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
