//go:build linux

package raspberry

import (
	"github.com/warthog618/gpiod"
)

type chip struct {
	gpiodChip *gpiod.Chip
}

// Open opens a GPIO character device. If device is empty, the first chip
// is used.
func Open(device string) (Chip, error) {
	if device == "" {
		device = "gpiochip0"
	}

	c, err := gpiod.NewChip(device)
	if err != nil {
		return nil, err
	}
	return &chip{gpiodChip: c}, nil
}

type inputLine struct {
	gpiodLine *gpiod.Line
}

type outputLine struct {
	gpiodLine *gpiod.Line
}

// RequestInput requests control of a single input line on the chip.
// If granted, control is maintained until the line is closed.
func (c *chip) RequestInput(gpio int, term Termination) (Input, error) {
	var err error

	line := &inputLine{}

	switch term {
	case PullUp:
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.AsInput, gpiod.WithPullUp)
	case PullDown:
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.AsInput, gpiod.WithPullDown)
	case None:
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.AsInput)
	default:
		return nil, ErrInvalidParam
	}

	if err != nil {
		return nil, err
	}
	return line, nil
}

// RequestOutput requests control of a single output line on the chip,
// driven to initial.
func (c *chip) RequestOutput(gpio int, initial bool) (Output, error) {
	v := 0
	if initial {
		v = 1
	}

	l, err := c.gpiodChip.RequestLine(gpio, gpiod.AsOutput(v))
	if err != nil {
		return nil, err
	}
	return &outputLine{gpiodLine: l}, nil
}

// Close releases the chip.
func (c *chip) Close() error {
	return c.gpiodChip.Close()
}

func (l *inputLine) Read() (bool, error) {
	v, err := l.gpiodLine.Value()
	return v != 0, err
}

func (l *inputLine) Close() error {
	return l.gpiodLine.Close()
}

func (l *outputLine) Set(v bool) error {
	value := 0
	if v {
		value = 1
	}
	return l.gpiodLine.SetValue(value)
}

func (l *outputLine) Close() error {
	return l.gpiodLine.Close()
}
