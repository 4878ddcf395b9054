package presence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"go.ember.chat/internal/common/metrics"
	"go.ember.chat/internal/common/tsid"
)

// BreakerConfig configures the presence circuit breaker
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker
	Failures uint32

	// Timeout is how long the breaker stays open before probing again
	Timeout time.Duration
}

// Guarded wraps a Store with a circuit breaker. Failures never surface to
// callers: session calls degrade to "not first" and "not last", lookups
// report nobody online.
type Guarded struct {
	inner  Store
	region string
	cb     *gobreaker.CircuitBreaker
}

// NewGuarded wraps inner with a circuit breaker
func NewGuarded(inner Store, region string, cfg BreakerConfig) *Guarded {
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "presence",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Info("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			var stateValue float64
			switch to {
			case gobreaker.StateClosed:
				stateValue = float64(metrics.CircuitBreakerClosed)
			case gobreaker.StateOpen:
				stateValue = float64(metrics.CircuitBreakerOpen)
			case gobreaker.StateHalfOpen:
				stateValue = float64(metrics.CircuitBreakerHalfOpen)
			}
			metrics.PresenceCircuitBreakerState.Set(stateValue)
		},
	})

	return &Guarded{inner: inner, region: region, cb: cb}
}

// State returns the breaker state
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func (g *Guarded) CreateSession(ctx context.Context, userID string, flags uint8) (Session, bool, error) {
	type created struct {
		session Session
		first   bool
	}

	out, err := execute(g, "create_session", func() (created, error) {
		s, first, err := g.inner.CreateSession(ctx, userID, flags)
		return created{s, first}, err
	})
	if err != nil {
		// Still hand out a session so the connection can proceed
		return Session{ID: tsid.Generate(), Region: g.region, Flags: flags}, false, nil
	}
	return out.session, out.first, nil
}

func (g *Guarded) DeleteSession(ctx context.Context, userID string, session Session) (bool, error) {
	last, err := execute(g, "delete_session", func() (bool, error) {
		return g.inner.DeleteSession(ctx, userID, session)
	})
	if err != nil {
		return false, nil
	}
	return last, nil
}

func (g *Guarded) FilterOnline(ctx context.Context, ids []string) ([]string, error) {
	online, err := execute(g, "filter_online", func() ([]string, error) {
		return g.inner.FilterOnline(ctx, ids)
	})
	if err != nil {
		return []string{}, nil
	}
	return online, nil
}

func (g *Guarded) IsOnline(ctx context.Context, userID string) (bool, error) {
	ok, err := execute(g, "is_online", func() (bool, error) {
		return g.inner.IsOnline(ctx, userID)
	})
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// ClearRegion, Heartbeat and Sweep report failures so the janitor can log
// them; they still count towards the breaker.

func (g *Guarded) ClearRegion(ctx context.Context, region string) error {
	_, err := execute(g, "clear_region", func() (struct{}, error) {
		return struct{}{}, g.inner.ClearRegion(ctx, region)
	})
	return err
}

func (g *Guarded) Heartbeat(ctx context.Context, region string, ttl time.Duration) error {
	_, err := execute(g, "heartbeat", func() (struct{}, error) {
		return struct{}{}, g.inner.Heartbeat(ctx, region, ttl)
	})
	return err
}

func (g *Guarded) Sweep(ctx context.Context) ([]string, error) {
	return execute(g, "sweep", func() ([]string, error) {
		return g.inner.Sweep(ctx)
	})
}

func execute[T any](g *Guarded, operation string, fn func() (T, error)) (T, error) {
	result, err := g.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.PresenceOperations.WithLabelValues(operation, "rejected").Inc()
		} else {
			metrics.PresenceOperations.WithLabelValues(operation, "error").Inc()
			slog.Warn("Presence operation failed", "operation", operation, "error", err)
		}
		return zero, err
	}
	metrics.PresenceOperations.WithLabelValues(operation, "ok").Inc()
	return result.(T), nil
}
