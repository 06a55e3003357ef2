// Package raspberry grants access to the gpio lines of the clock hardware.
//
// The receiver line is polled by the signal classifier, so lines are plain
// read/write requests without edge watchers. On linux the lines are backed
// by the gpio character device, everywhere else by the emulator.
package raspberry

import (
	"fmt"
)

var ErrInvalidParam = fmt.Errorf("invalid parameters")

// Termination selects the bias of a requested input line.
type Termination string

const (
	PullUp   Termination = "pullup"
	PullDown Termination = "pulldown"
	None     Termination = "none"
)

// Input is a single requested input line.
type Input interface {
	Read() (bool, error)
	Close() error
}

// Output is a single requested output line.
type Output interface {
	Set(bool) error
	Close() error
}

// Chip represents a single gpio chip that controls a set of lines.
// Requested lines are not released by closing the chip, they must be
// closed independently.
type Chip interface {
	RequestInput(gpio int, term Termination) (Input, error)
	RequestOutput(gpio int, initial bool) (Output, error)
	Close() error
}
