package alerting

import (
	"context"
	"log/slog"
	"time"

	"attest/pkg/platform/circuit"
)

// Sink delivers notifications to an external system.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	Close() error
}

// Forwarder consumes a subscription and hands each notification to a sink.
// A failing sink opens the breaker; while open, notifications are skipped
// so delivery problems never back up into the bus.
type Forwarder struct {
	sink        Sink
	sub         *Subscription
	breaker     *circuit.Breaker
	sendTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) { f.logger = logger }
}

// WithForwarderMetrics sets the metrics collector.
func WithForwarderMetrics(m *Metrics) ForwarderOption {
	return func(f *Forwarder) { f.metrics = m }
}

// WithSendTimeout bounds each Send call.
func WithSendTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		if d > 0 {
			f.sendTimeout = d
		}
	}
}

// NewForwarder subscribes to bus on behalf of sink.
func NewForwarder(bus *Bus, sink Sink, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		sink:        sink,
		sub:         bus.Subscribe(0),
		breaker:     circuit.New(sink.Name(), circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		sendTimeout: 5 * time.Second,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run forwards notifications until ctx is cancelled or the bus closes.
func (f *Forwarder) Run(ctx context.Context) error {
	defer f.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-f.sub.C:
			if !ok {
				return nil
			}
			f.forward(ctx, n)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, n Notification) {
	name := f.sink.Name()
	if !f.breaker.Allow() {
		if f.metrics != nil {
			f.metrics.IncForwardFailures(name)
		}
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	defer cancel()

	if err := f.sink.Send(sendCtx, n); err != nil {
		_, change := f.breaker.RecordFailure()
		if f.metrics != nil {
			f.metrics.IncForwardFailures(name)
			if change.Opened {
				f.metrics.SetCircuitOpen(name, true)
			}
		}
		f.logger.WarnContext(ctx, "notification sink failed",
			"sink", name,
			"kind", n.Kind,
			"notification_id", n.ID,
			"error", err,
		)
		if change.Opened {
			f.logger.ErrorContext(ctx, "notification sink circuit opened", "sink", name)
		}
		return
	}

	_, change := f.breaker.RecordSuccess()
	if f.metrics != nil {
		f.metrics.IncForwarded(name)
		if change.Closed {
			f.metrics.SetCircuitOpen(name, false)
		}
	}
}
