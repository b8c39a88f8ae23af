package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Add(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) tracker(n int) *Tracker { return newTrackerWithClock(n, c.Now) }

func TestTracker(t *testing.T) {
	t.Run("eta is calculating before the first group", func(t *testing.T) {
		clock := newFakeClock()
		tr := clock.tracker(4)
		clock.Add(5 * time.Second)

		p := tr.Snapshot()
		assert.False(t, p.ETAKnown)
		assert.Equal(t, "calculating", p.ETAString())
		assert.Equal(t, 0, p.Percent)
	})

	t.Run("linear extrapolation", func(t *testing.T) {
		clock := newFakeClock()
		tr := clock.tracker(4)

		clock.Add(10 * time.Second)
		p := tr.Advance()
		assert.Equal(t, 1, p.Completed)
		assert.Equal(t, 25, p.Percent)
		assert.InDelta(t, 0.25, p.Fraction, 1e-9)
		assert.Equal(t, 30*time.Second, p.ETA)
		assert.Equal(t, "30s", p.ETAString())

		clock.Add(30 * time.Second)
		p = tr.Advance()
		assert.Equal(t, 40*time.Second, p.ETA)
	})

	t.Run("eta is zero when done and never counts past total", func(t *testing.T) {
		clock := newFakeClock()
		tr := clock.tracker(2)
		for i := 0; i < 3; i++ {
			clock.Add(7 * time.Second)
			p := tr.Advance()
			assert.GreaterOrEqual(t, p.ETA, time.Duration(0))
		}
		p := tr.Snapshot()
		assert.Equal(t, 2, p.Completed)
		assert.Equal(t, 100, p.Percent)
		assert.Equal(t, time.Duration(0), p.ETA)
		assert.Equal(t, "0s", p.ETAString())
	})

	t.Run("whole seconds", func(t *testing.T) {
		clock := newFakeClock()
		tr := clock.tracker(3)
		clock.Add(1500 * time.Millisecond)
		p := tr.Advance()
		assert.Equal(t, 3*time.Second, p.ETA)
	})

	t.Run("empty batch", func(t *testing.T) {
		p := NewTracker(0).Advance()
		assert.Equal(t, 0, p.Completed)
		assert.Equal(t, 0.0, p.Fraction)
	})
}
