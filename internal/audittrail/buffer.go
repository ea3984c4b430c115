package audittrail

import "sync"

// DefaultBufferCapacity bounds the in-memory trail when no capacity is configured.
const DefaultBufferCapacity = 50000

// Buffer is a bounded, thread-safe ring of audit events.
// When full, the oldest half is dropped in one step so a burst costs one
// eviction instead of one per event.
type Buffer struct {
	mu       sync.RWMutex
	events   []*Event
	head     int // next write position
	tail     int // oldest event
	count    int
	capacity int

	// Stats
	dropped int64
}

// NewBuffer creates a buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < 2 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		events:   make([]*Event, capacity),
		capacity: capacity,
	}
}

// Append adds an event, dropping the oldest half first when full.
// It returns how many events were dropped.
func (b *Buffer) Append(e *Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	if b.count >= b.capacity {
		dropped = b.count / 2
		for range dropped {
			b.events[b.tail] = nil
			b.tail = (b.tail + 1) % b.capacity
		}
		b.count -= dropped
		b.dropped += int64(dropped)
	}

	b.events[b.head] = e
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// each visits events oldest first while the caller holds the lock.
func (b *Buffer) each(fn func(e *Event)) {
	for i := 0; i < b.count; i++ {
		fn(b.events[(b.tail+i)%b.capacity])
	}
}

// Select returns copies of matching events, oldest first.
func (b *Buffer) Select(match func(e *Event) bool) []*Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*Event
	b.each(func(e *Event) {
		if match(e) {
			out = append(out, e.clone())
		}
	})
	return out
}

// Update mutates matching events in place and returns how many changed.
func (b *Buffer) Update(match func(e *Event) bool, mutate func(e *Event)) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	b.each(func(e *Event) {
		if match(e) {
			mutate(e)
			n++
		}
	})
	return n
}

// Len returns the current number of events in the buffer.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Dropped returns the total number of dropped events.
func (b *Buffer) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
