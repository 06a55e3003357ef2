package tick

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCascadeDividers(t *testing.T) {
	c := New(DefaultBase)

	var base, sample, tenth, second, minute int
	c.Register(Base, func() { base++ })
	c.Register(Sample, func() { sample++ })
	c.Register(Tenth, func() { tenth++ })
	c.Register(Second, func() { second++ })
	c.Register(Minute, func() { minute++ })

	c.Advance(1000)
	assert.Equal(t, 1000, base)
	assert.Equal(t, 100, sample)
	assert.Equal(t, 10, tenth)
	assert.Equal(t, 1, second)
	assert.Equal(t, 0, minute)

	c.Advance(59000)
	assert.Equal(t, 60000, base)
	assert.Equal(t, 6000, sample)
	assert.Equal(t, 600, tenth)
	assert.Equal(t, 60, second)
	assert.Equal(t, 1, minute)
}

func TestCascadePhase(t *testing.T) {
	c := New(DefaultBase)

	var sample int
	c.Register(Sample, func() { sample++ })

	// the sample stage fires on the 10th base tick, not before
	c.Advance(9)
	assert.Equal(t, 0, sample)
	c.Advance(1)
	assert.Equal(t, 1, sample)
}

func TestCascadeOrder(t *testing.T) {
	c := New(DefaultBase)

	var order []string
	c.Register(Base, func() { order = append(order, "base") })
	c.Register(Sample, func() { order = append(order, "sample1") })
	c.Register(Sample, func() { order = append(order, "sample2") })

	c.Advance(10)

	// on the firing tick the base stage runs before the sample stage, and
	// sample handlers run in registration order
	assert.Equal(t, "base", order[len(order)-3])
	assert.Equal(t, "sample1", order[len(order)-2])
	assert.Equal(t, "sample2", order[len(order)-1])
}

func TestInterval(t *testing.T) {
	c := New(DefaultBase)

	assert.Equal(t, time.Millisecond, c.Interval(Base))
	assert.Equal(t, 10*time.Millisecond, c.Interval(Sample))
	assert.Equal(t, 100*time.Millisecond, c.Interval(Tenth))
	assert.Equal(t, time.Second, c.Interval(Second))
	assert.Equal(t, time.Minute, c.Interval(Minute))
}

func TestRunClose(t *testing.T) {
	c := New(DefaultBase)
	go c.Run()

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("cascade did not shut down")
	}
}
