// Package rtc contains the drivers for the battery backed real time clock.
//
// All drivers deliver and accept the shared calendar value; the weekday
// register follows the same numbering as the time signal (1 = Monday ..
// 7 = Sunday) and the year is stored as the offset within the century.
package rtc

import (
	"errors"
)

var (
	ErrOscillatorStopped = errors.New("rtc oscillator was stopped, time invalid")
	ErrInvalidTime       = errors.New("rtc delivered an invalid time")
)

// bcdToInt converts a packed BCD register value.
func bcdToInt(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

// intToBCD packs a value of 0..99 into a BCD register value.
func intToBCD(v int) byte {
	return byte(v/10<<4 | v%10)
}
