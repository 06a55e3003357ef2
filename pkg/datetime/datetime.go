// Package datetime holds the calendar value passed between the signal
// decoder, the rtc and the synchronization controller.
package datetime

import (
	"fmt"
	"time"
)

// CenturyBase is the fixed century of the two digit year field.
// The DCF77 frame and the RTC both store the year as an offset within
// the current century.
const CenturyBase = 2000

// DateTime is a calendar timestamp as carried by the DCF77 signal and the
// RTC. Year is the offset from CenturyBase (0..99). Weekday follows the
// DCF77 numbering: 1 = Monday .. 7 = Sunday. The value carries no timezone,
// it is whatever zone the signal source transmits.
type DateTime struct {
	Year    int
	Month   int
	Day     int
	Weekday int
	Hour    int
	Minute  int
	Second  int
}

var weekdayNames = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// FromTime converts a time.Time to a DateTime, mapping the weekday to the
// DCF77 numbering.
func FromTime(t time.Time) DateTime {
	return DateTime{
		Year:    t.Year() - CenturyBase,
		Month:   int(t.Month()),
		Day:     t.Day(),
		Weekday: (int(t.Weekday())+6)%7 + 1,
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
	}
}

// Time converts the DateTime to a time.Time in the local zone of the host.
func (d DateTime) Time() time.Time {
	return time.Date(CenturyBase+d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.Local)
}

// Validate checks all fields against their legal ranges, including the
// calendar day range of the month.
func (d DateTime) Validate() error {
	switch {
	case d.Year < 0 || d.Year > 99:
		return fmt.Errorf("year out of range: %d", d.Year)
	case d.Month < 1 || d.Month > 12:
		return fmt.Errorf("month out of range: %d", d.Month)
	case d.Day < 1 || d.Day > daysInMonth(d.Year, d.Month):
		return fmt.Errorf("day out of range: %d", d.Day)
	case d.Weekday < 1 || d.Weekday > 7:
		return fmt.Errorf("weekday out of range: %d", d.Weekday)
	case d.Hour < 0 || d.Hour > 23:
		return fmt.Errorf("hour out of range: %d", d.Hour)
	case d.Minute < 0 || d.Minute > 59:
		return fmt.Errorf("minute out of range: %d", d.Minute)
	case d.Second < 0 || d.Second > 59:
		return fmt.Errorf("second out of range: %d", d.Second)
	}
	return nil
}

// AddMinute returns the DateTime advanced by one minute, rolling over hour,
// day, weekday, month and year as needed. The seconds field is cleared.
func (d DateTime) AddMinute() DateTime {
	d.Second = 0
	d.Minute++
	if d.Minute < 60 {
		return d
	}
	d.Minute = 0
	d.Hour++
	if d.Hour < 24 {
		return d
	}
	d.Hour = 0
	d.Weekday++
	if d.Weekday > 7 {
		d.Weekday = 1
	}
	d.Day++
	if d.Day <= daysInMonth(d.Year, d.Month) {
		return d
	}
	d.Day = 1
	d.Month++
	if d.Month <= 12 {
		return d
	}
	d.Month = 1
	d.Year++
	if d.Year > 99 {
		d.Year = 0
	}
	return d
}

func (d DateTime) String() string {
	wd := "???"
	if d.Weekday >= 1 && d.Weekday <= 7 {
		wd = weekdayNames[d.Weekday]
	}
	return fmt.Sprintf("%s %04d-%02d-%02d %02d:%02d:%02d",
		wd, CenturyBase+d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeap(CenturyBase + year) {
			return 29
		}
		return 28
	}
	return 0
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
