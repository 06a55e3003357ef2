// Package pulse classifies the pulse and gap timings of a DCF77 receiver
// line into the per second symbols of the time code.
//
// DCF77 reduces its carrier once per second: a reduction of nominal 100ms
// encodes a "0", of nominal 200ms a "1", and the missing reduction of the
// 59th second marks the minute.
// https://en.wikipedia.org/wiki/DCF77
package pulse

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/womat/debug"
)

// Classification is the meaning of one received second slot.
type Classification int

const (
	// ZeroBit is a carrier reduction inside the "0" window.
	ZeroBit Classification = 0
	// OneBit is a carrier reduction inside the "1" window.
	OneBit Classification = 1
	// MinuteMark is the long gap of the missing 59th pulse.
	MinuteMark Classification = 2
	// Invalid is noise, an out of window timing or a timeout.
	Invalid Classification = -1
)

// Classification windows. The values keep the ratios of the 10ms sampling
// quantum; changing the sample interval rescales the measured durations but
// not the windows.
const (
	// ZeroPulseMin/Max bound the carrier reduction of a "0" bit.
	ZeroPulseMin = 60 * time.Millisecond
	ZeroPulseMax = 140 * time.Millisecond
	// OnePulseMin/Max bound the carrier reduction of a "1" bit.
	OnePulseMin = 150 * time.Millisecond
	OnePulseMax = 300 * time.Millisecond
	// PauseMin/Max bound the gap between the end of one pulse and the start
	// of the next; such a gap confirms the pending bit.
	PauseMin = 700 * time.Millisecond
	PauseMax = 1000 * time.Millisecond
	// SyncGapMin/Max bound the gap of the missing 59th pulse.
	SyncGapMin = 1700 * time.Millisecond
	SyncGapMax = 2000 * time.Millisecond
	// Timeout resets the classifier when the line shows no edge for this long.
	Timeout = 2200 * time.Millisecond
)

// stateType represents the state of the classifier.
type stateType int

const (
	// synchronizing waits for a minute sync gap to phase align decoding.
	synchronizing stateType = iota
	// synchronized emits one classification per received second.
	synchronized
)

// pendingType is the not yet confirmed classification of the last pulse.
type pendingType int

const (
	pendingNone pendingType = iota
	pendingZero
	pendingOne
	pendingNoise
)

// Line is the receiver input; Read returns the current filtered level.
type Line interface {
	Read() (bool, error)
}

// Indicator mirrors the normalized line level, typically to a status LED.
type Indicator interface {
	Set(bool) error
}

// Sink consumes classifications in received order.
type Sink interface {
	Push(Classification)
}

var (
	classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wclock_pulse_classifications_total",
		Help: "Second slots classified, by symbol.",
	}, []string{"symbol"})
	classifierTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_pulse_timeouts_total",
		Help: "Resets because the line showed no edge within the timeout.",
	})
	lineReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_pulse_read_errors_total",
		Help: "Failed reads of the receiver line.",
	})
)

// Classifier samples the receiver line at a fixed rate and turns edge
// timings into classifications. All timing state is owned by the cascade
// goroutine calling Sample; Enable and Disable are safe from any goroutine.
type Classifier struct {
	line      Line
	indicator Indicator
	sink      Sink

	// period is the duration of one sample tick.
	period   time.Duration
	inverted bool

	enabled  atomic.Bool
	resetReq atomic.Bool

	state   stateType
	pending pendingType
	// level is the line level of the previous sample.
	level bool
	// outLevel is the last level written to the indicator.
	outLevel bool

	pulseTicks int
	gapTicks   int
	idleTicks  int

	cnt int
}

// New generates a classifier reading line once per period. A true level is a
// carrier reduction; set inverted for receiver modules with an inverted
// output. indicator may be nil. The classifier starts disabled.
func New(line Line, indicator Indicator, sink Sink, period time.Duration, inverted bool) *Classifier {
	return &Classifier{
		line:      line,
		indicator: indicator,
		sink:      sink,
		period:    period,
		inverted:  inverted,
		state:     synchronizing,
	}
}

// Enable opens a reception window. Decoding starts phase blind and locks on
// the next minute sync gap.
func (c *Classifier) Enable() {
	if c.enabled.Swap(true) {
		return
	}

	c.resetReq.Store(true)
	debug.InfoLog.Print("signal reception enabled")
}

// Disable closes the reception window and drops the indicator line.
func (c *Classifier) Disable() {
	if !c.enabled.Swap(false) {
		return
	}

	if c.indicator != nil {
		_ = c.indicator.Set(false)
	}
	debug.InfoLog.Print("signal reception disabled")
}

// Enabled reports whether a reception window is open.
func (c *Classifier) Enabled() bool {
	return c.enabled.Load()
}

// Sample reads the line once and advances the timing state by one sample
// interval. It is registered on the sample stage of the tick cascade.
func (c *Classifier) Sample() {
	if !c.enabled.Load() {
		return
	}

	if c.resetReq.Swap(false) {
		c.reset()
		// Disable dropped the indicator, mirror the line level again
		c.outLevel = false
		// taint whatever frame survived from the previous window
		c.emit(Invalid)
	}

	v, err := c.line.Read()
	if err != nil {
		lineReadErrors.Inc()
		// keep the previous level, a dead line runs into the timeout
		v = c.level
	}
	if c.inverted {
		v = !v
	}
	c.mirror(v)

	switch {
	case v && !c.level:
		c.rise()
		c.pulseTicks = 0
		c.idleTicks = 0
	case !v && c.level:
		c.fall()
		c.gapTicks = 0
		c.idleTicks = 0
	default:
		c.idleTicks++
		if c.dur(c.idleTicks) > Timeout {
			c.timeout()
		}
	}

	c.level = v
	if v {
		c.pulseTicks++
	} else {
		c.gapTicks++
	}
}

// rise handles a rising edge: the gap since the last falling edge decides
// whether the pending bit is confirmed, the minute mark is reached, or the
// frame is abandoned.
func (c *Classifier) rise() {
	gap := c.dur(c.gapTicks)

	switch c.state {
	case synchronizing:
		c.pending = pendingNone
		if gap >= SyncGapMin && gap <= SyncGapMax {
			c.emit(MinuteMark)
			c.state = synchronized
			debug.DebugLog.Printf("minute sync gap of %v found, classifier locked", gap)
		}

	case synchronized:
		switch {
		case gap >= PauseMin && gap <= PauseMax:
			c.emitPending()
		case gap >= SyncGapMin && gap <= SyncGapMax:
			// the pending bit is the final bit of the frame
			c.emitPending()
			c.emit(MinuteMark)
		default:
			c.pending = pendingNone
			c.emit(Invalid)
			c.state = synchronizing
			debug.DebugLog.Printf("gap of %v out of all windows, resynchronizing", gap)
		}
	}
}

// fall handles a falling edge: the pulse width is classified into a pending
// bit, confirmed by the following gap.
func (c *Classifier) fall() {
	d := c.dur(c.pulseTicks)

	switch {
	case d >= ZeroPulseMin && d <= ZeroPulseMax:
		c.pending = pendingZero
	case d >= OnePulseMin && d <= OnePulseMax:
		c.pending = pendingOne
	default:
		c.pending = pendingNoise
	}

	if c.cnt < 10 {
		debug.TraceLog.Printf("pulse width %v", d)
		c.cnt++
	}
}

// emitPending emits the classification of the last pulse.
func (c *Classifier) emitPending() {
	switch c.pending {
	case pendingZero:
		c.emit(ZeroBit)
	case pendingOne:
		c.emit(OneBit)
	default:
		c.emit(Invalid)
	}

	c.pending = pendingNone
}

func (c *Classifier) emit(cl Classification) {
	classifications.WithLabelValues(cl.String()).Inc()
	c.sink.Push(cl)
}

// timeout handles a line without edges beyond the hard limit.
func (c *Classifier) timeout() {
	classifierTimeouts.Inc()

	if c.state == synchronized || c.pending != pendingNone {
		// discard the partial frame
		c.emit(Invalid)
		debug.DebugLog.Print("no line edge within timeout, resynchronizing")
	}
	c.reset()
}

// mirror follows the normalized line level on the indicator output.
func (c *Classifier) mirror(v bool) {
	if c.indicator == nil || v == c.outLevel {
		return
	}

	c.outLevel = v
	_ = c.indicator.Set(v)
}

func (c *Classifier) reset() {
	c.state = synchronizing
	c.pending = pendingNone
	c.pulseTicks = 0
	c.gapTicks = 0
	c.idleTicks = 0
}

// dur converts a sample tick count to a duration.
func (c *Classifier) dur(ticks int) time.Duration {
	return time.Duration(ticks) * c.period
}

func (c Classification) String() string {
	switch c {
	case ZeroBit:
		return "0"
	case OneBit:
		return "1"
	case MinuteMark:
		return "minute"
	default:
		return "invalid"
	}
}
