// Package circuitbreaker guards calls to out-of-process integrations with
// Sony's gobreaker.
package circuitbreaker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"triggerd/internal/common/errors"
	"triggerd/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before going half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the number of probes allowed while half-open
	MaxConcurrentRequests int
}

// DefaultConfig suits relay publishes: trip fast, probe after half a minute.
func DefaultConfig() Config {
	return Config{
		MaxFailures:           3,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	switch {
	case c.MaxFailures <= 0:
		return errors.ConfigError(fmt.Sprintf("MaxFailures must be positive, got %d", c.MaxFailures))
	case c.Timeout <= 0:
		return errors.ConfigError(fmt.Sprintf("Timeout must be positive, got %v", c.Timeout))
	case c.MaxConcurrentRequests <= 0:
		return errors.ConfigError(fmt.Sprintf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests))
	}
	return nil
}

// State of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Failures            int    `json:"failures"`
	Successes           int    `json:"successes"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// Breaker wraps a gobreaker.CircuitBreaker.
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// New creates a breaker. An invalid config falls back to DefaultConfig.
func New(name string, config Config, logger logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.String("breaker", name),
			logging.Err(err),
		)
		config = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	}

	return &Breaker{name: name, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Client errors do not count against the remote side.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	switch errors.GetType(err) {
	case errors.ErrTypeValidation, errors.ErrTypeNotFound:
		return true
	}
	return false
}

// Execute runs fn through the breaker. Rejections while open are
// ConnectionErrors naming the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})

	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState):
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' is open", b.name), err)
	case stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.ConnectionError(fmt.Sprintf("circuit breaker '%s' has too many requests", b.name), err)
	}
	return err
}

func (b *Breaker) Name() string { return b.name }

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	switch b.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Stats returns the counts of the current window.
func (b *Breaker) Stats() Stats {
	counts := b.breaker.Counts()
	return Stats{
		Name:                b.name,
		State:               b.State().String(),
		Failures:            int(counts.TotalFailures),
		Successes:           int(counts.TotalSuccesses),
		ConsecutiveFailures: int(counts.ConsecutiveFailures),
	}
}

func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}
