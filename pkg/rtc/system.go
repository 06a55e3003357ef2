package rtc

import (
	"time"

	"github.com/womat/debug"

	"wclock/pkg/datetime"
)

// System substitutes the clock module with the host system clock.
// It is meant for development machines without the ds3231 attached.
type System struct {
}

// Read delivers the current system time.
func (s *System) Read() (datetime.DateTime, error) {
	return datetime.FromTime(time.Now()), nil
}

// Write doesn't step the host clock, it only logs the offset to dt.
// Stepping the system clock needs privileges and is the job of ntp.
func (s *System) Write(dt datetime.DateTime) error {
	offset := time.Until(dt.Time()).Round(time.Millisecond)
	debug.DebugLog.Printf("system clock keeps running, offset to received time is %v", offset)
	return nil
}
