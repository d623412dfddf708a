// Package circuitbreaker wraps sony/gobreaker for calls to external
// delivery services, so a failing push gateway cannot stall the scan loops.
package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Config holds circuit breaker tuning.
type Config struct {
	// Name identifies the breaker in logs and metrics.
	Name string
	// MaxRequests is the number of probe requests allowed while half-open.
	MaxRequests uint32
	// Interval clears the failure counts periodically while closed.
	Interval time.Duration
	// Timeout is the open period before probing again.
	Timeout time.Duration
	// FailureThreshold opens the breaker after this many consecutive failures.
	FailureThreshold uint32
	// FailureRatio opens the breaker when this share of requests fails.
	FailureRatio float64
	// MinRequests is the minimum sample before FailureRatio applies.
	MinRequests uint32
}

// DefaultConfig returns defaults suitable for a push notification gateway.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		FailureRatio:     0.6,
		MinRequests:      10,
	}
}

// Breaker is a gobreaker with logging and request/failure counters.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger

	requests metric.Int64Counter
	failures metric.Int64Counter
}

// New creates a breaker from cfg.
func New(cfg Config, logger *zap.Logger) (*Breaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter("circuitbreaker")
	requests, err := meter.Int64Counter("breaker_requests_total",
		metric.WithDescription("Requests passed through the circuit breaker"))
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}
	failures, err := meter.Int64Counter("breaker_failures_total",
		metric.WithDescription("Requests failed or rejected by the circuit breaker"))
	if err != nil {
		return nil, fmt.Errorf("create failures counter: %w", err)
	}

	b := &Breaker{name: cfg.Name, logger: logger, requests: requests, failures: failures}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return b, nil
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func() (any, error)) (any, error) {
	attrs := metric.WithAttributes(attribute.String("name", b.name))
	b.requests.Add(ctx, 1, attrs)

	out, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		b.failures.Add(ctx, 1, attrs)
	}
	return out, err
}

// State returns the current breaker state as a string.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
