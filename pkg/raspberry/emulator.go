package raspberry

import (
	"fmt"
	"sync"
)

// Emulator replaces the gpio chip on machines without gpio hardware.
// Emulated input levels are driven with SetLevel, output levels are
// observed with Level.
type Emulator struct {
	mu     sync.Mutex
	levels map[int]bool
	used   map[int]bool
}

func NewEmulator() *Emulator {
	return &Emulator{
		levels: map[int]bool{},
		used:   map[int]bool{},
	}
}

func (e *Emulator) RequestInput(gpio int, term Termination) (Input, error) {
	switch term {
	case PullUp, PullDown, None:
	default:
		return nil, ErrInvalidParam
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.used[gpio] {
		return nil, fmt.Errorf("pin %v already used", gpio)
	}
	e.used[gpio] = true
	// a pulled up line idles high
	e.levels[gpio] = term == PullUp

	return &emuLine{e: e, gpio: gpio}, nil
}

func (e *Emulator) RequestOutput(gpio int, initial bool) (Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.used[gpio] {
		return nil, fmt.Errorf("pin %v already used", gpio)
	}
	e.used[gpio] = true
	e.levels[gpio] = initial

	return &emuLine{e: e, gpio: gpio}, nil
}

func (e *Emulator) Close() error {
	return nil
}

// SetLevel drives an emulated line.
func (e *Emulator) SetLevel(gpio int, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.levels[gpio] = v
}

// Level returns the current level of an emulated line.
func (e *Emulator) Level(gpio int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels[gpio]
}

type emuLine struct {
	e    *Emulator
	gpio int
}

func (l *emuLine) Read() (bool, error) {
	return l.e.Level(l.gpio), nil
}

func (l *emuLine) Set(v bool) error {
	l.e.SetLevel(l.gpio, v)
	return nil
}

func (l *emuLine) Close() error {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	delete(l.e.used, l.gpio)
	return nil
}
