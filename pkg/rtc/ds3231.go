package rtc

import (
	"fmt"

	"github.com/womat/debug"
	"periph.io/x/conn/v3/i2c"

	"wclock/pkg/datetime"
)

// DefaultAddress is the fixed i2c address of the ds3231.
const DefaultAddress = 0x68

// ds3231 register map
const (
	regSeconds = 0x00
	regStatus  = 0x0f

	maskSeconds = 0x7f
	maskMinutes = 0x7f
	maskHours   = 0x3f
	maskWeekday = 0x07
	maskDay     = 0x3f
	maskMonth   = 0x1f

	statusOSF = 0x80
)

// DS3231 drives a maxim ds3231 clock module on the i2c bus.
// The chip is operated in 24h mode, the century bit is ignored.
type DS3231 struct {
	dev i2c.Dev
}

// NewDS3231 returns a driver for the clock module at addr.
// If addr is 0, the default address is used.
func NewDS3231(bus i2c.Bus, addr uint16) *DS3231 {
	if addr == 0 {
		addr = DefaultAddress
	}

	return &DS3231{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

// Read delivers the current time of the clock module.
// If the oscillator stop flag is set, the battery was empty or removed and
// the registers hold an arbitrary time; Read fails until the next Write.
func (d *DS3231) Read() (datetime.DateTime, error) {
	var status [1]byte
	if err := d.dev.Tx([]byte{regStatus}, status[:]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("read status register: %w", err)
	}
	if status[0]&statusOSF != 0 {
		return datetime.DateTime{}, ErrOscillatorStopped
	}

	var regs [7]byte
	if err := d.dev.Tx([]byte{regSeconds}, regs[:]); err != nil {
		return datetime.DateTime{}, fmt.Errorf("read clock registers: %w", err)
	}

	dt := datetime.DateTime{
		Second:  bcdToInt(regs[0] & maskSeconds),
		Minute:  bcdToInt(regs[1] & maskMinutes),
		Hour:    bcdToInt(regs[2] & maskHours),
		Weekday: int(regs[3] & maskWeekday),
		Day:     bcdToInt(regs[4] & maskDay),
		Month:   bcdToInt(regs[5] & maskMonth),
		Year:    bcdToInt(regs[6]),
	}

	if err := dt.Validate(); err != nil {
		return datetime.DateTime{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}

	debug.TraceLog.Printf("rtc read: %v", dt)
	return dt, nil
}

// Write sets the clock module to dt and clears the oscillator stop flag.
func (d *DS3231) Write(dt datetime.DateTime) error {
	buf := []byte{
		regSeconds,
		intToBCD(dt.Second),
		intToBCD(dt.Minute),
		intToBCD(dt.Hour),
		byte(dt.Weekday),
		intToBCD(dt.Day),
		intToBCD(dt.Month),
		intToBCD(dt.Year),
	}
	if err := d.dev.Tx(buf, nil); err != nil {
		return fmt.Errorf("write clock registers: %w", err)
	}

	var status [1]byte
	if err := d.dev.Tx([]byte{regStatus}, status[:]); err != nil {
		return fmt.Errorf("read status register: %w", err)
	}
	if status[0]&statusOSF != 0 {
		if err := d.dev.Tx([]byte{regStatus, status[0] &^ statusOSF}, nil); err != nil {
			return fmt.Errorf("clear oscillator stop flag: %w", err)
		}
	}

	debug.InfoLog.Printf("rtc set to %v", dt)
	return nil
}
