package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("proof-url", WithFailureThreshold(2))

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)
	assert.True(t, b.Allow())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "open circuit rejects calls during cooldown")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("proof-url", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	assert.False(t, b.IsOpen())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("proof-url",
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(clock.Now),
	)

	b.RecordFailure()
	require.True(t, b.IsOpen())

	clock.Advance(30 * time.Second)
	assert.False(t, b.Allow())

	clock.Advance(31 * time.Second)
	assert.True(t, b.Allow(), "first call after cooldown is a probe")
	assert.False(t, b.Allow(), "only one probe in flight")

	t.Run("failed probe restarts cooldown", func(t *testing.T) {
		b.RecordFailure()
		assert.True(t, b.IsOpen())
		assert.False(t, b.Allow())
	})

	t.Run("successful probe closes", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		require.True(t, b.Allow())
		usePrimary, change := b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.Equal(t, "closed", b.State().String())
	})
}

func TestBreakerReset(t *testing.T) {
	b := New("proof-url", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}
