// Package dcf77 assembles classified second symbols into the 59 bit DCF77
// frame and decodes it into a calendar value.
//
// The bits transmitted during a minute encode the time of the minute that
// begins at the completing sync mark, so a frame that validates is current
// at the moment it is handed over. Frame layout (bit 0 first):
//
//	 0      start of minute, always 0
//	 1-19   weather/announcement bits, ignored
//	20      start of encoded time, always 1
//	21-28   minute BCD + even parity
//	29-35   hour BCD + even parity
//	36-41   day of month BCD
//	42-44   weekday BCD (1 = Monday .. 7 = Sunday)
//	45-49   month BCD
//	50-57   year within century BCD
//	58      even parity over bits 36-57
package dcf77

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/womat/debug"

	"wclock/pkg/datetime"
	"wclock/pkg/pulse"
)

// FrameBits is the nominal bit count of a minute frame.
const FrameBits = 59

// positions of the fixed frame fields.
const (
	bitStart     = 0
	bitTimeStart = 20
	minuteFirst  = 21
	minuteParity = 28
	hourFirst    = 29
	hourParity   = 35
	dayFirst     = 36
	weekdayFirst = 42
	monthFirst   = 45
	yearFirst    = 50
	dateParity   = 58
)

var (
	ErrFrameTainted = errors.New("frame contains invalid symbols")
	ErrFrameLength  = errors.New("unexpected frame length")
	ErrStartBit     = errors.New("start of minute bit is not 0")
	ErrTimeBit      = errors.New("start of time bit is not 1")
	ErrParity       = errors.New("parity check failed")
	ErrBCD          = errors.New("bcd digit out of range")
)

var (
	framesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wclock_frames_decoded_total",
		Help: "Frames that passed all structural, parity and range checks.",
	})
	framesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wclock_frames_rejected_total",
		Help: "Frames discarded at the minute mark, by reason.",
	}, []string{"reason"})
)

// Stats is a snapshot of the assembler counters.
type Stats struct {
	Decoded   int
	Rejected  int
	LastFrame datetime.DateTime
	LastError string
}

// Handler accumulates symbols between two minute marks and validates the
// completed frame. The accumulation state is owned by the cascade goroutine
// pushing the symbols; the decoded result is handed over under a mutex.
type Handler struct {
	// bits has one slot of slack: a leap second minute carries 60 bits and
	// is rejected by length instead of being counted as an overflow.
	bits [FrameBits + 1]bool
	// pos is the position of the next received bit.
	pos int
	// tainted marks a frame that contained an invalid symbol.
	tainted bool
	// synced is set once the first minute mark was seen.
	synced bool

	// mu locks the handover slot and the stats.
	mu    sync.Mutex
	last  datetime.DateTime
	fresh bool
	stats Stats
}

// New generates a new frame assembler.
func New() *Handler {
	return &Handler{}
}

// Push consumes one classified second symbol.
func (h *Handler) Push(c pulse.Classification) {
	switch c {
	case pulse.MinuteMark:
		h.flush()
		h.pos = 0
		h.tainted = false
		h.synced = true

	case pulse.ZeroBit, pulse.OneBit:
		if !h.synced {
			return
		}
		if h.pos >= len(h.bits) {
			h.tainted = true
			return
		}
		h.bits[h.pos] = c == pulse.OneBit
		h.pos++

	default:
		// invalid symbols taint the frame; it fails validation at the next
		// minute mark but keeps accumulating for the diagnostic counters
		h.tainted = true
	}
}

// DateTime hands over the last decoded frame exactly once. The freshness
// flag is set only by the assembler and cleared only here.
func (h *Handler) DateTime() (datetime.DateTime, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.fresh {
		return datetime.DateTime{}, false
	}

	h.fresh = false
	return h.last, true
}

// Stats returns a snapshot of the assembler counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stats
}

// flush validates the frame completed by a minute mark and stores the
// decoded value for handover.
func (h *Handler) flush() {
	if !h.synced || h.pos == 0 {
		return
	}

	dt, err := h.decode()
	if err != nil {
		framesRejected.WithLabelValues(reason(err)).Inc()
		debug.DebugLog.Printf("frame rejected: %v", err)

		h.mu.Lock()
		h.stats.Rejected++
		h.stats.LastError = err.Error()
		h.mu.Unlock()
		return
	}

	framesDecoded.Inc()
	debug.InfoLog.Printf("frame decoded: %v", dt)

	h.mu.Lock()
	h.last = dt
	h.fresh = true
	h.stats.Decoded++
	h.stats.LastFrame = dt
	h.mu.Unlock()
}

func (h *Handler) decode() (datetime.DateTime, error) {
	if h.tainted {
		return datetime.DateTime{}, ErrFrameTainted
	}
	if h.pos != FrameBits {
		return datetime.DateTime{}, fmt.Errorf("%w: %d bits", ErrFrameLength, h.pos)
	}
	return Decode(h.bits[:h.pos])
}

// Decode validates and decodes a complete frame.
func Decode(bits []bool) (datetime.DateTime, error) {
	if len(bits) != FrameBits {
		return datetime.DateTime{}, fmt.Errorf("%w: %d bits", ErrFrameLength, len(bits))
	}
	if bits[bitStart] {
		return datetime.DateTime{}, ErrStartBit
	}
	if !bits[bitTimeStart] {
		return datetime.DateTime{}, ErrTimeBit
	}

	if !evenParity(bits[minuteFirst : minuteParity+1]) {
		return datetime.DateTime{}, fmt.Errorf("%w: minutes", ErrParity)
	}
	if !evenParity(bits[hourFirst : hourParity+1]) {
		return datetime.DateTime{}, fmt.Errorf("%w: hours", ErrParity)
	}
	if !evenParity(bits[dayFirst : dateParity+1]) {
		return datetime.DateTime{}, fmt.Errorf("%w: date", ErrParity)
	}

	var dt datetime.DateTime
	var err error

	if dt.Minute, err = bcd(bits[minuteFirst:minuteParity]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("minutes: %w", err)
	}
	if dt.Hour, err = bcd(bits[hourFirst:hourParity]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("hours: %w", err)
	}
	if dt.Day, err = bcd(bits[dayFirst:weekdayFirst]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("day: %w", err)
	}
	if dt.Weekday, err = bcd(bits[weekdayFirst:monthFirst]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("weekday: %w", err)
	}
	if dt.Month, err = bcd(bits[monthFirst:yearFirst]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("month: %w", err)
	}
	if dt.Year, err = bcd(bits[yearFirst:dateParity]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("year: %w", err)
	}

	// seconds are implicitly 0 at the sync mark completing the frame
	if err = dt.Validate(); err != nil {
		return datetime.DateTime{}, err
	}

	return dt, nil
}

// Encode is the inverse of Decode, including the parity bits. It is used by
// the tests and by signal simulations.
func Encode(dt datetime.DateTime) [FrameBits]bool {
	var bits [FrameBits]bool

	bits[bitTimeStart] = true

	encodeBCD(bits[minuteFirst:minuteParity], dt.Minute)
	bits[minuteParity] = oddOnes(bits[minuteFirst:minuteParity])

	encodeBCD(bits[hourFirst:hourParity], dt.Hour)
	bits[hourParity] = oddOnes(bits[hourFirst:hourParity])

	encodeBCD(bits[dayFirst:weekdayFirst], dt.Day)
	encodeBCD(bits[weekdayFirst:monthFirst], dt.Weekday)
	encodeBCD(bits[monthFirst:yearFirst], dt.Month)
	encodeBCD(bits[yearFirst:dateParity], dt.Year)
	bits[dateParity] = oddOnes(bits[dayFirst:dateParity])

	return bits
}

// bcd decodes an LSB first BCD field: up to four bits for the ones digit,
// the remaining bits for the tens digit.
func bcd(bits []bool) (int, error) {
	split := 4
	if len(bits) < split {
		split = len(bits)
	}

	ones := binary(bits[:split])
	tens := binary(bits[split:])
	if ones > 9 || tens > 9 {
		return 0, ErrBCD
	}

	return tens*10 + ones, nil
}

// encodeBCD fills an LSB first BCD field.
func encodeBCD(dst []bool, v int) {
	split := 4
	if len(dst) < split {
		split = len(dst)
	}

	for i := 0; i < split; i++ {
		dst[i] = (v%10)&(1<<i) != 0
	}
	for i := split; i < len(dst); i++ {
		dst[i] = (v/10)&(1<<(i-split)) != 0
	}
}

func binary(bits []bool) int {
	v := 0
	for i, b := range bits {
		if b {
			v |= 1 << i
		}
	}
	return v
}

// evenParity reports whether the field, including its parity bit, holds an
// even number of ones.
func evenParity(bits []bool) bool {
	return !oddOnes(bits)
}

func oddOnes(bits []bool) bool {
	odd := false
	for _, b := range bits {
		if b {
			odd = !odd
		}
	}
	return odd
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrFrameTainted):
		return "tainted"
	case errors.Is(err, ErrFrameLength):
		return "length"
	case errors.Is(err, ErrStartBit), errors.Is(err, ErrTimeBit):
		return "structure"
	case errors.Is(err, ErrParity):
		return "parity"
	case errors.Is(err, ErrBCD):
		return "bcd"
	default:
		return "range"
	}
}
