package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	n := New(KindRecordAppended, SeverityInfo, "hello", time.Now())
	bus.Publish(n)

	assert.Equal(t, n.ID, (<-a.C).ID)
	assert.Equal(t, n.ID, (<-b.C).ID)
}

func TestBus_KindFilter(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4, KindSecurityAlert)

	bus.Publish(New(KindRecordAppended, SeverityInfo, "ignored", time.Now()))
	bus.Publish(New(KindSecurityAlert, SeverityHigh, "wanted", time.Now()))

	got := <-sub.C
	assert.Equal(t, KindSecurityAlert, got.Kind)
	assert.Empty(t, sub.C)
}

func TestBus_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)

	done := make(chan struct{})
	go func() {
		for range 5 {
			bus.Publish(New(KindRecordAppended, SeverityInfo, "x", time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.C, 1)
	assert.Equal(t, int64(4), bus.Dropped())
}

func TestBus_CloseClosesSubscriptions(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)
	bus.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	// publishing and closing after close are no-ops
	bus.Publish(New(KindRecordAppended, SeverityInfo, "late", time.Now()))
	sub.Close()
	bus.Close()

	late := bus.Subscribe(1)
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestSubscription_CloseUnregisters(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(1)
	sub.Close()
	sub.Close()

	bus.Publish(New(KindRecordAppended, SeverityInfo, "x", time.Now()))
	assert.Equal(t, int64(0), bus.Dropped())
	_, ok := <-sub.C
	require.False(t, ok)
}
