// Package scheduler provides the periodic scan loops that drive the engine:
// generic single-flight pollers, the near-term reminder dispatcher, and the
// weekly checkup broadcast. Persisted flags on the scanned rows make every
// pass idempotent, so overlap prevention is a performance guard, not a
// correctness requirement.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanacare/go-care/internal/observability/metrics"
)

// PassFunc runs one bounded scan pass.
type PassFunc func(ctx context.Context) error

// Poller runs a pass at a fixed interval. A single-flight guard skips a tick
// while the previous pass is still running.
type Poller struct {
	name     string
	interval time.Duration
	pass     PassFunc
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *metrics.Metrics

	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller named name running pass every interval.
// m may be nil.
func NewPoller(name string, interval time.Duration, pass PassFunc, m *metrics.Metrics, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		name:     name,
		interval: interval,
		pass:     pass,
		logger:   logger,
		tracer:   otel.Tracer("scheduler"),
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins ticking.
func (p *Poller) Start() {
	go p.loop()
	p.logger.Info("poller started",
		zap.String("poller", p.name),
		zap.Duration("interval", p.interval))
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (p *Poller) Stop() {
	p.cancel()
	<-p.done
	p.logger.Info("poller stopped", zap.String("poller", p.name))
}

func (p *Poller) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.runPass()
		}
	}
}

func (p *Poller) runPass() {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Warn("pass still running, tick skipped", zap.String("poller", p.name))
		return
	}
	defer p.running.Store(false)

	ctx, span := p.tracer.Start(p.ctx, "scan_pass",
		trace.WithAttributes(attribute.String("poller", p.name)))
	defer span.End()

	start := time.Now()
	err := p.pass(ctx)
	elapsed := time.Since(start)

	if p.metrics != nil {
		p.metrics.ScanDuration.WithLabelValues(p.name).Observe(elapsed.Seconds())
		if err != nil {
			p.metrics.ScanFailures.WithLabelValues(p.name).Inc()
		}
	}

	if err != nil {
		span.RecordError(err)
		p.logger.Error("scan pass failed",
			zap.String("poller", p.name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	p.logger.Debug("scan pass complete",
		zap.String("poller", p.name),
		zap.Duration("elapsed", elapsed))
}
