package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTLGetWithinAndAfterExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTL[int](10 * time.Second).WithClock(clk.now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clk.advance(9 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clk.advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry at exactly ttl is expired")

	v, storedAt, ok := c.Peek("a")
	require.True(t, ok, "peek still sees expired values")
	assert.Equal(t, 1, v)
	assert.Equal(t, time.Unix(1_700_000_000, 0), storedAt)
}

func TestTTLInvalidateAndSweep(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTL[string](time.Second).WithClock(clk.now)

	c.Set("old", "x")
	clk.advance(time.Hour)
	c.Set("new", "y")

	assert.Equal(t, 1, c.Sweep(time.Minute))
	assert.Equal(t, 1, c.Len())

	c.Invalidate("new")
	_, _, ok := c.Peek("new")
	assert.False(t, ok)
}
