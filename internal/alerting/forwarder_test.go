package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []Notification
	fail bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestForwarder_DeliversUntilBusCloses(t *testing.T) {
	bus := NewBus()
	sink := &recordingSink{}
	fwd := NewForwarder(bus, sink)

	errCh := make(chan error, 1)
	go func() { errCh <- fwd.Run(context.Background()) }()

	bus.Publish(New(KindSecurityAlert, SeverityHigh, "one", time.Now()))
	bus.Publish(New(KindSecurityAlert, SeverityHigh, "two", time.Now()))

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	bus.Close()
	assert.NoError(t, <-errCh)
}

func TestForwarder_StopsOnContextCancel(t *testing.T) {
	bus := NewBus()
	fwd := NewForwarder(bus, &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fwd.Run(ctx), context.Canceled)
}

func TestForwarder_OpensBreakerOnRepeatedFailures(t *testing.T) {
	bus := NewBus()
	sink := &recordingSink{fail: true}
	fwd := NewForwarder(bus, sink)

	ctx := context.Background()
	for range 5 {
		fwd.forward(ctx, New(KindSecurityAlert, SeverityHigh, "x", time.Now()))
	}
	assert.True(t, fwd.breaker.IsOpen())

	// while open the sink is not called even when healthy again
	sink.fail = false
	fwd.forward(ctx, New(KindSecurityAlert, SeverityHigh, "skipped", time.Now()))
	assert.Equal(t, 0, sink.count())
}
