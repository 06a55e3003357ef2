package dcf77

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wclock/pkg/datetime"
	"wclock/pkg/pulse"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		dt   datetime.DateTime
	}{
		{"midnight", datetime.DateTime{Year: 25, Month: 1, Day: 1, Weekday: 3}},
		{"afternoon", datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 17, Minute: 45}},
		{"all digits high", datetime.DateTime{Year: 99, Month: 12, Day: 31, Weekday: 5, Hour: 23, Minute: 59}},
		{"leap day", datetime.DateTime{Year: 24, Month: 2, Day: 29, Weekday: 4, Hour: 6, Minute: 7}},
		{"single digits", datetime.DateTime{Year: 1, Month: 2, Day: 3, Weekday: 4, Hour: 5, Minute: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bits := Encode(tt.dt)
			got, err := Decode(bits[:])
			require.NoError(t, err)
			assert.Equal(t, tt.dt, got)
		})
	}
}

func TestDecodeStructure(t *testing.T) {
	dt := datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 12, Minute: 34}

	_, err := Decode(make([]bool, 30))
	assert.ErrorIs(t, err, ErrFrameLength)

	bits := Encode(dt)
	bits[0] = true
	_, err = Decode(bits[:])
	assert.ErrorIs(t, err, ErrStartBit)

	bits = Encode(dt)
	bits[20] = false
	_, err = Decode(bits[:])
	assert.ErrorIs(t, err, ErrTimeBit)
}

func TestSingleBitFlipsAreRejected(t *testing.T) {
	dt := datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 17, Minute: 45}
	good := Encode(dt)

	_, err := Decode(good[:])
	require.NoError(t, err)

	// every data and parity bit of the time code is covered by a check
	for i := 21; i < FrameBits; i++ {
		bits := good
		bits[i] = !bits[i]
		_, err := Decode(bits[:])
		assert.Errorf(t, err, "flipped bit %d accepted", i)
	}

	// the weather/announcement bits are not part of the time code
	for i := 1; i < 20; i++ {
		bits := good
		bits[i] = !bits[i]
		got, err := Decode(bits[:])
		require.NoErrorf(t, err, "flipped bit %d rejected", i)
		assert.Equal(t, dt, got)
	}
}

func TestBCDDigitValidation(t *testing.T) {
	// a ones digit of 15 decodes to minute 15 and would pass the range
	// check, only the digit validation catches it; setting all four bits
	// keeps the parity even
	bits := Encode(datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 12})
	bits[21], bits[22], bits[23], bits[24] = true, true, true, true

	_, err := Decode(bits[:])
	assert.ErrorIs(t, err, ErrBCD)
}

func TestDecodeRangeValidation(t *testing.T) {
	// weekday 0 is structurally a fine BCD value but outside 1..7
	bits := Encode(datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 4, Hour: 12})
	// weekday 4 is bit 44 only; clearing it makes the weekday 0, clearing
	// the day tens bit as well keeps the date parity even (day 25 becomes
	// the still valid day 5)
	require.True(t, bits[44])
	bits[44] = false
	bits[41] = false

	_, err := Decode(bits[:])
	assert.Error(t, err)
}

// pushBits feeds data bits into the assembler.
func pushBits(h *Handler, bits []bool) {
	for _, b := range bits {
		if b {
			h.Push(pulse.OneBit)
		} else {
			h.Push(pulse.ZeroBit)
		}
	}
}

func TestHandlerHandoffOnce(t *testing.T) {
	dt := datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 17, Minute: 45}
	bits := Encode(dt)

	h := New()
	h.Push(pulse.MinuteMark)
	pushBits(h, bits[:])
	h.Push(pulse.MinuteMark)

	got, ok := h.DateTime()
	require.True(t, ok)
	assert.Equal(t, dt, got)

	// a second read yields nothing until the next decoded frame
	_, ok = h.DateTime()
	assert.False(t, ok)

	assert.Equal(t, 1, h.Stats().Decoded)
	assert.Equal(t, dt, h.Stats().LastFrame)
}

func TestHandlerIgnoresBitsBeforeFirstMark(t *testing.T) {
	dt := datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 17, Minute: 45}
	bits := Encode(dt)

	h := New()
	pushBits(h, bits[:])
	h.Push(pulse.MinuteMark)

	_, ok := h.DateTime()
	assert.False(t, ok)
	assert.Zero(t, h.Stats().Rejected)

	// a full frame after the mark decodes
	pushBits(h, bits[:])
	h.Push(pulse.MinuteMark)
	_, ok = h.DateTime()
	assert.True(t, ok)
}

func TestHandlerRejectsShortFrame(t *testing.T) {
	dt := datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 17, Minute: 45}
	bits := Encode(dt)

	h := New()
	h.Push(pulse.MinuteMark)
	pushBits(h, bits[:57])
	h.Push(pulse.MinuteMark)

	_, ok := h.DateTime()
	assert.False(t, ok)
	assert.Equal(t, 1, h.Stats().Rejected)
	assert.Contains(t, h.Stats().LastError, "length")
}

func TestHandlerRejectsTaintedFrame(t *testing.T) {
	dt := datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 17, Minute: 45}
	bits := Encode(dt)

	h := New()
	h.Push(pulse.MinuteMark)
	pushBits(h, bits[:30])
	h.Push(pulse.Invalid)
	pushBits(h, bits[30:])
	h.Push(pulse.MinuteMark)

	_, ok := h.DateTime()
	assert.False(t, ok)
	assert.Equal(t, 1, h.Stats().Rejected)

	// the taint does not leak into the next minute
	pushBits(h, bits[:])
	h.Push(pulse.MinuteMark)
	_, ok = h.DateTime()
	assert.True(t, ok)
}

func TestHandlerRejectsOverlongFrame(t *testing.T) {
	h := New()
	h.Push(pulse.MinuteMark)
	for i := 0; i < 70; i++ {
		h.Push(pulse.ZeroBit)
	}
	h.Push(pulse.MinuteMark)

	_, ok := h.DateTime()
	assert.False(t, ok)
	assert.Equal(t, 1, h.Stats().Rejected)
}

// feedSecond generates the line levels of one transmitted bit: the carrier
// reduction pulse followed by the rest of the second.
func feedSecond(c *pulse.Classifier, line *scriptLine, bit bool, gap time.Duration) {
	width := 100 * time.Millisecond
	if bit {
		width = 200 * time.Millisecond
	}
	line.drive(c, true, width)
	line.drive(c, false, gap-width)
}

type scriptLine struct {
	level bool
}

func (s *scriptLine) Read() (bool, error) {
	return s.level, nil
}

func (s *scriptLine) drive(c *pulse.Classifier, level bool, d time.Duration) {
	s.level = level
	for n := int(d / (10 * time.Millisecond)); n > 0; n-- {
		c.Sample()
	}
}

func TestSignalRoundTrip(t *testing.T) {
	dt := datetime.DateTime{Year: 25, Month: 8, Day: 25, Weekday: 1, Hour: 17, Minute: 45}
	bits := Encode(dt)

	h := New()
	line := &scriptLine{}
	c := pulse.New(line, nil, h, 10*time.Millisecond, false)
	c.Enable()

	// lead-in: silence until the classifier locks on the sync gap
	line.drive(c, false, 1800*time.Millisecond)

	for i, b := range bits {
		gap := time.Second
		if i == FrameBits-1 {
			// the second of the last bit runs into the missing 59th pulse
			gap = 2 * time.Second
		}
		feedSecond(c, line, b, gap)
	}

	// the pulse of the next minute confirms the last bit and the mark
	line.drive(c, true, 100*time.Millisecond)

	got, ok := h.DateTime()
	require.True(t, ok)
	assert.Equal(t, dt, got)

	_, ok = h.DateTime()
	assert.False(t, ok)
}
