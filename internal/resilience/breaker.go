// Package resilience wraps calls to flaky external services in a circuit breaker.
package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without calling the operation while the breaker is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
}

// CircuitBreaker short-circuits calls after repeated failures.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a breaker that logs its state changes.
func NewCircuitBreaker(cfg BreakerConfig, log *slog.Logger) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	maxFailures := uint32(cfg.MaxFailures) //nolint:gosec // validated positive

	log = log.With("component", "circuit_breaker", "name", cfg.Name)
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs operation unless the circuit is open.
func (b *CircuitBreaker) Execute(ctx context.Context, operation func(context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, operation(ctx)
	})
	return err
}

// State reports the current breaker state: closed, half-open or open.
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}
