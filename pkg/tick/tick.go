// Package tick drives all periodic work from a single base interval.
//
// The base interval is divided down a fixed cascade (10 x 10 x 10 x 60), so
// every stage stays phase aligned to the base tick: with the default 1ms base
// the stages fire at 1kHz, 100Hz, 10Hz, 1Hz and once per minute. Handlers run
// to completion on the cascade goroutine in registration order.
package tick

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/womat/debug"
)

// DefaultBase is the base interval of the cascade (1 kHz).
const DefaultBase = time.Millisecond

// maxCatchUp bounds the burst of ticks executed after the goroutine was
// stalled (scheduling delay, host suspend). Everything beyond one cascade
// second is dropped; the rtc resync absorbs the lost time.
const maxCatchUp = 1000

// Level identifies one stage of the divider cascade.
type Level int

const (
	// Base fires on every base tick.
	Base Level = iota
	// Sample fires every 10 base ticks (100 Hz), the signal sampling rate.
	Sample
	// Tenth fires every 100 base ticks (10 Hz).
	Tenth
	// Second fires every 1000 base ticks (1 Hz).
	Second
	// Minute fires every 60 seconds.
	Minute
)

// dividers of each stage relative to the previous stage.
var dividers = [...]int{1, 10, 10, 10, 60}

// Handler is invoked on the cascade goroutine and must not block.
type Handler func()

var (
	ticksCaughtUp = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_tick_catchup_total",
		Help: "Base ticks executed late to catch up with the wall clock.",
	})
	ticksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_tick_dropped_total",
		Help: "Base ticks dropped because a catch up burst exceeded the limit.",
	})
)

// Cascade is the chain of divider stages with their registered handlers.
type Cascade struct {
	base     time.Duration
	counts   [len(dividers)]int
	handlers [len(dividers)][]Handler

	quit chan struct{}
	done chan struct{}
}

// New generates a cascade with the given base interval.
func New(base time.Duration) *Cascade {
	if base <= 0 {
		base = DefaultBase
	}

	return &Cascade{
		base: base,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register adds a handler to a cascade stage. All registrations must happen
// before Run is started.
func (c *Cascade) Register(l Level, h Handler) {
	c.handlers[l] = append(c.handlers[l], h)
}

// Interval returns the period at which the given stage fires.
func (c *Cascade) Interval(l Level) time.Duration {
	d := c.base
	for i := Base + 1; i <= l; i++ {
		d *= time.Duration(dividers[i])
	}
	return d
}

// Advance executes n base ticks synchronously. Run uses it internally; tests
// use it to step the cascade deterministically.
func (c *Cascade) Advance(n int) {
	for ; n > 0; n-- {
		c.tick()
	}
}

// tick advances the cascade by one base interval. A stage fires when its
// counter reaches the divider and only then clocks the next stage.
func (c *Cascade) tick() {
	for i := range dividers {
		c.counts[i]++
		if c.counts[i] < dividers[i] {
			return
		}

		c.counts[i] = 0
		for _, h := range c.handlers[i] {
			h()
		}
	}
}

// Run drives the cascade from the monotonic clock until Close is called.
// The number of due base ticks is recomputed on every wakeup, so ticker
// coalescing under load delays handlers but never slows the logical clock.
func (c *Cascade) Run() {
	debug.DebugLog.Printf("start tick cascade (base %v)", c.base)

	ticker := time.NewTicker(c.base)
	defer ticker.Stop()

	start := time.Now()
	var executed int64

	for {
		select {
		case <-c.quit:
			debug.DebugLog.Print("stop tick cascade")
			close(c.done)
			return
		case <-ticker.C:
			due := int64(time.Since(start) / c.base)
			n := due - executed
			if n > maxCatchUp {
				ticksDropped.Add(float64(n - maxCatchUp))
				n = maxCatchUp
			}
			if n > 1 {
				ticksCaughtUp.Add(float64(n - 1))
			}
			c.Advance(int(n))
			executed = due
		}
	}
}

// Close stops the cascade and waits until the Run loop has ended.
func (c *Cascade) Close() error {
	close(c.quit)
	<-c.done
	return nil
}
