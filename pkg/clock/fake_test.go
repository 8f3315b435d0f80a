package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	c := NewFake()
	var fired []string

	c.AfterFunc(3*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(10*time.Second, func() { fired = append(fired, "c") })

	c.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(7 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeStop(t *testing.T) {
	c := NewFake()
	called := false
	timer := c.AfterFunc(time.Second, func() { called = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop should report already stopped")

	c.Advance(2 * time.Second)
	assert.False(t, called)
}

func TestFakeRearmInsideCallback(t *testing.T) {
	c := NewFake()
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 5 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(3 * time.Second)
	assert.Equal(t, 3, ticks)

	c.Advance(10 * time.Second)
	assert.Equal(t, 5, ticks)
}

func TestFakeNowAndNextDeadline(t *testing.T) {
	c := NewFake()
	start := c.Now()

	_, ok := c.NextDeadline()
	assert.False(t, ok)

	c.AfterFunc(4*time.Second, func() {})
	c.Advance(time.Second)

	d, ok := c.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
	assert.Equal(t, start.Add(time.Second), c.Now())
}

func TestFakeTieOrder(t *testing.T) {
	c := NewFake()
	var order []int
	c.AfterFunc(time.Second, func() { order = append(order, 1) })
	c.AfterFunc(time.Second, func() { order = append(order, 2) })

	c.Advance(time.Second)
	assert.Equal(t, []int{1, 2}, order)
}
