package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New("mirror", append([]Option{WithClock(clock.now)}, opts...)...), clock
}

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker()
	assert.Equal(t, "mirror", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(3))

	for i := 1; i < 3; i++ {
		useFallback, change := b.RecordFailure()
		require.False(t, useFallback, "failure %d should not open", i)
		require.False(t, change.Opened)
	}
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow(), "open breaker rejects calls during cooldown")

	t.Run("further failures report no transition", func(t *testing.T) {
		useFallback, change := b.RecordFailure()
		assert.True(t, useFallback)
		assert.Equal(t, StateChange{}, change)
	})
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen(), "failures must be consecutive")
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2), WithCooldown(10*time.Second))
	b.RecordFailure()
	require.False(t, b.Allow())

	clock.advance(11 * time.Second)
	assert.True(t, b.Allow(), "probe allowed once cooldown elapsed")

	t.Run("failed probe restarts cooldown", func(t *testing.T) {
		b.RecordFailure()
		assert.False(t, b.Allow())
		clock.advance(11 * time.Second)
		assert.True(t, b.Allow())
	})

	t.Run("enough successes close the circuit", func(t *testing.T) {
		usePrimary, change := b.RecordSuccess()
		assert.False(t, usePrimary)
		assert.False(t, change.Closed)

		usePrimary, change = b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestBreakerFailureResetsSuccessStreak(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen(), "success streak restarts after a failure")
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
