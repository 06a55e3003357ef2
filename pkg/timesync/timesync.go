// Package timesync reconciles the three time sources of the clock: the soft
// second counter driven by the tick cascade, the battery backed rtc and the
// decoded time signal frames.
//
// Trust ordering: a validated frame outranks the rtc, the rtc outranks the
// soft counter. Between confirmations the seconds run on the soft counter
// alone, which is resynchronized against the rtc at the minute boundary with
// drift compensation. If the rtc keeps failing, the clock holds over on the
// soft counter and advances whole minutes on its own.
package timesync

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/womat/debug"

	"wclock/pkg/datetime"
)

const (
	// defaultResync is the soft second at which the rtc is read again,
	// the minute boundary.
	defaultResync = 60

	// holdoverGrace is how many seconds past the minute boundary rtc reads
	// may keep failing before the clock advances the minute on its own.
	holdoverGrace = 2
)

// RTC is the battery backed clock the controller reconciles against.
type RTC interface {
	Read() (datetime.DateTime, error)
	Write(datetime.DateTime) error
}

// Display is notified whenever the displayed minute changes.
type Display interface {
	OnNewMinute(datetime.DateTime)
}

// Receiver gates the sampling of the time signal receiver.
type Receiver interface {
	EnableReception()
	DisableReception()
}

// Source tags where the current time was last confirmed from.
type Source int

const (
	SourceNone Source = iota
	SourceRTC
	SourceDCF77
	SourceHoldover
)

func (s Source) String() string {
	switch s {
	case SourceRTC:
		return "rtc"
	case SourceDCF77:
		return "dcf77"
	case SourceHoldover:
		return "holdover"
	default:
		return "none"
	}
}

// updateKind tags which path produced a reconciliation.
type updateKind int

const (
	softTick updateKind = iota
	rtcResync
	holdoverMinute
	signalOverride
)

var (
	resyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_sync_resyncs_total",
		Help: "Successful scheduled rtc reads.",
	})
	rtcReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_sync_rtc_read_errors_total",
		Help: "Failed rtc reads.",
	})
	rtcWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_sync_rtc_write_errors_total",
		Help: "Failed rtc writes.",
	})
	holdovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_sync_holdovers_total",
		Help: "Minutes advanced on the soft clock alone.",
	})
	overrides = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_sync_overrides_total",
		Help: "Decoded frames adopted over the rtc.",
	})
	driftSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wclock_sync_drift_seconds",
		Help: "Seconds the soft clock ran fast (positive) or slow at the last resync.",
	})
)

// Stats is a snapshot of the synchronization counters.
type Stats struct {
	Resyncs     int
	RTCErrors   int
	WriteErrors int
	Overrides   int
	Holdovers   int
	Drift       int // seconds the soft clock ran fast at the last resync
	ResyncAt    int // soft second of the next scheduled rtc read
}

// Controller keeps the displayed time consistent with the best available
// source. SecondTick is the only method called from the cascade goroutine;
// everything else belongs to the service loop. Now and Stats may be called
// from any goroutine.
type Controller struct {
	rtc      RTC
	display  Display
	receiver Receiver

	soft atomic.Int32 // seconds counted by the cascade since the last adoption

	handled    int  // soft value the last Step acted on
	nextResync int  // soft second threshold for the next rtc read
	first      bool // no source confirmed yet

	lastMinute int
	lastHour   int

	mu      sync.Mutex
	current datetime.DateTime
	source  Source
	stats   Stats
}

// New returns a controller reading rtc and driving display and receiver.
// The first Step reads the rtc immediately.
func New(rtc RTC, display Display, receiver Receiver) *Controller {
	return &Controller{
		rtc:        rtc,
		display:    display,
		receiver:   receiver,
		handled:    -1,
		first:      true,
		lastMinute: -1,
		lastHour:   -1,
	}
}

// SecondTick advances the soft clock. It is registered at the second level
// of the tick cascade and must not block.
func (c *Controller) SecondTick() {
	c.soft.Add(1)
}

// Step runs one reconciliation cycle. The service loop calls it frequently;
// it does nothing until the soft clock has moved since the last call.
func (c *Controller) Step() {
	s := int(c.soft.Load())
	if s == c.handled {
		return
	}
	c.handled = s

	if s >= c.nextResync {
		c.resync(s)
		return
	}

	// between confirmations only the seconds move
	c.mu.Lock()
	dt, src := c.current, c.source
	c.mu.Unlock()
	dt.Second = s
	c.reconcile(dt, src, softTick)
}

// resync reads the rtc and adopts its time. On failure the previous values
// are kept and the read is retried every following second; past the grace
// period the clock holds over on the soft counter.
func (c *Controller) resync(s int) {
	dt, err := c.rtc.Read()
	if err != nil {
		rtcReadErrors.Inc()
		debug.ErrorLog.Printf("rtc read failed: %v", err)
		c.mu.Lock()
		c.stats.RTCErrors++
		c.mu.Unlock()

		if c.first {
			return
		}
		if s >= defaultResync+holdoverGrace {
			c.holdover(s)
			return
		}
		if s <= 59 {
			c.mu.Lock()
			dt, src := c.current, c.source
			c.mu.Unlock()
			dt.Second = s
			c.reconcile(dt, src, softTick)
		}
		return
	}

	// drift is how far the soft clock ran ahead of the rtc since the last
	// adoption, minute wrap normalized to [-30,29]
	drift := (s - dt.Second + 30) % 60
	if drift < 0 {
		drift += 60
	}
	drift -= 30

	next := defaultResync
	if !c.first && drift > 0 {
		// the soft clock runs fast: pull the next read forward so both
		// clocks meet again at the minute boundary
		next = defaultResync - drift
		debug.DebugLog.Printf("soft clock %ds fast, next resync at second %d", drift, next)
	}
	if c.first {
		drift = 0
	}

	c.first = false
	c.nextResync = next
	c.soft.Store(int32(dt.Second))
	c.handled = dt.Second

	resyncs.Inc()
	driftSeconds.Set(float64(drift))
	c.mu.Lock()
	c.stats.Resyncs++
	c.stats.Drift = drift
	c.stats.ResyncAt = next
	c.mu.Unlock()

	debug.TraceLog.Printf("rtc resync: %v", dt)
	c.reconcile(dt, SourceRTC, rtcResync)
}

// holdover advances the displayed time without the rtc and folds the soft
// counter back into the minute. More than one minute accumulates only if the
// service loop was stalled.
func (c *Controller) holdover(s int) {
	c.mu.Lock()
	dt := c.current
	c.mu.Unlock()

	minutes := s / defaultResync
	for i := 0; i < minutes; i++ {
		dt = dt.AddMinute()
	}
	dt.Second = s % defaultResync

	c.soft.Add(-int32(minutes * defaultResync))
	c.handled = dt.Second
	c.nextResync = 0 // keep trying the rtc every second

	holdovers.Add(float64(minutes))
	c.mu.Lock()
	c.stats.Holdovers += minutes
	c.stats.ResyncAt = 0
	c.mu.Unlock()

	debug.ErrorLog.Printf("rtc unavailable, holding over on the soft clock: %v", dt)
	c.reconcile(dt, SourceHoldover, holdoverMinute)
}

// Apply adopts a freshly decoded time signal frame. The frame outranks all
// other sources: it is written back to the rtc, the soft clock restarts at
// the frame's second and the reception window closes.
func (c *Controller) Apply(dt datetime.DateTime) {
	if err := c.rtc.Write(dt); err != nil {
		rtcWriteErrors.Inc()
		debug.ErrorLog.Printf("rtc write failed: %v", err)
		c.mu.Lock()
		c.stats.WriteErrors++
		c.mu.Unlock()
	}

	c.first = false
	c.nextResync = defaultResync
	c.soft.Store(int32(dt.Second))
	c.handled = dt.Second

	overrides.Inc()
	c.mu.Lock()
	c.stats.Overrides++
	c.stats.ResyncAt = defaultResync
	c.mu.Unlock()

	debug.InfoLog.Printf("time signal adopted: %v", dt)
	c.reconcile(dt, SourceDCF77, signalOverride)
}

// reconcile stores the consolidated time and drives the collaborators. The
// display is notified on every minute change and unconditionally on a signal
// override. The reception window opens on an hour change and closes on an
// override.
func (c *Controller) reconcile(dt datetime.DateTime, src Source, kind updateKind) {
	minuteChanged := dt.Minute != c.lastMinute
	hourChanged := dt.Hour != c.lastHour
	c.lastMinute = dt.Minute
	c.lastHour = dt.Hour

	c.mu.Lock()
	c.current = dt
	c.source = src
	c.mu.Unlock()

	if c.display != nil && (minuteChanged || kind == signalOverride) {
		c.display.OnNewMinute(dt)
	}

	if c.receiver == nil {
		return
	}
	switch {
	case kind == signalOverride:
		c.receiver.DisableReception()
	case hourChanged:
		debug.InfoLog.Print("hour rollover, opening reception window")
		c.receiver.EnableReception()
	}
}

// Now returns the consolidated time and the source of its last confirmation.
func (c *Controller) Now() (datetime.DateTime, Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.source
}

// Stats returns a snapshot of the synchronization counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
