package alerting

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultSubscriptionBuffer = 256

// Bus fans notifications out to subscribers. Each subscriber owns a bounded
// channel; when it is full the notification is dropped for that subscriber.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	closed  bool
	dropped atomic.Int64

	logger  *slog.Logger
	metrics *Metrics
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets a logger for drop reporting.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) BusOption {
	return func(b *Bus) {
		b.metrics = m
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{subs: make(map[uint64]*Subscription)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is a registered consumer of a Bus.
type Subscription struct {
	C <-chan Notification

	ch    chan Notification
	kinds map[Kind]struct{}
	bus   *Bus
	id    uint64
	once  sync.Once
}

// Subscribe registers a consumer for the given kinds (all kinds when none given).
// buffer <= 0 uses a default size.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	ch := make(chan Notification, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s.id]; ok {
			delete(s.bus.subs, s.id)
			close(s.ch)
		}
	})
}

func (s *Subscription) wants(k Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Publish delivers n to every interested subscriber without blocking.
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.IncPublished(n.Kind)
	}
	for _, sub := range b.subs {
		if !sub.wants(n.Kind) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			b.dropped.Add(1)
			if b.metrics != nil {
				b.metrics.IncDropped(n.Kind)
			}
			if b.logger != nil {
				b.logger.Warn("notification dropped, subscriber full",
					"kind", n.Kind,
					"notification_id", n.ID,
				)
			}
		}
	}
}

// Dropped returns the number of notifications dropped across all subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscription. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
