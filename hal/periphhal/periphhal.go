// Package periphhal implements the hal interfaces on Linux hosts (Raspberry
// Pi and friends) using periph.io.
package periphhal

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"robotdemo-go/errcode"
	"robotdemo-go/hal"
)

var (
	openOnce sync.Once
	openErr  error
)

// Open loads the periph host drivers. Safe to call more than once.
func Open() error {
	openOnce.Do(func() {
		_, openErr = host.Init()
	})
	return errcode.Wrap(errcode.NotReady, "periph.open", openErr)
}

// GPIO adapts one periph pin. It can serve as a digital output, a digital
// input with pulse timing, or a PWM channel.
type GPIO struct {
	pin    gpio.PinIO
	freq   physic.Frequency
	lastEr error
}

var (
	_ hal.DigitalOutput = (*GPIO)(nil)
	_ hal.DigitalInput  = (*GPIO)(nil)
	_ hal.PulseReader   = (*GPIO)(nil)
	_ hal.PwmOutput     = (*GPIO)(nil)
)

// Pin looks a pin up by its periph name, e.g. "GPIO18" or "12".
func Pin(name string) (*GPIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "periph.pin", Msg: name}
	}
	return Wrap(p), nil
}

// Wrap adapts an existing periph pin.
func Wrap(p gpio.PinIO) *GPIO { return &GPIO{pin: p} }

func (g *GPIO) String() string { return g.pin.String() }

// Err returns the last error from a write that has no error return.
func (g *GPIO) Err() error { return g.lastEr }

func toPull(p hal.Pull) gpio.Pull {
	switch p {
	case hal.PullUp:
		return gpio.PullUp
	case hal.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

func (g *GPIO) ConfigureInput(pull hal.Pull) error {
	return g.pin.In(toPull(pull), gpio.BothEdges)
}

func (g *GPIO) ConfigureOutput(initial bool) error {
	return g.pin.Out(gpio.Level(initial))
}

func (g *GPIO) Set(level bool) {
	if err := g.pin.Out(gpio.Level(level)); err != nil {
		g.lastEr = err
	}
}

func (g *GPIO) Get() bool { return bool(g.pin.Read()) }

// ReadPulse waits for the line to reach level, then for it to leave it, and
// returns the time in between. Edge waits share one deadline.
func (g *GPIO) ReadPulse(level bool, timeout time.Duration) time.Duration {
	want := gpio.Level(level)
	deadline := time.Now().Add(timeout)

	for g.pin.Read() != want {
		left := time.Until(deadline)
		if left <= 0 || !g.pin.WaitForEdge(left) {
			return 0
		}
	}
	start := time.Now()
	for g.pin.Read() == want {
		left := time.Until(deadline)
		if left <= 0 || !g.pin.WaitForEdge(left) {
			return 0
		}
	}
	return time.Since(start)
}

func (g *GPIO) Configure(freqHz uint32) error {
	if freqHz == 0 {
		return errcode.InvalidParams
	}
	g.freq = physic.Frequency(freqHz) * physic.Hertz
	return g.pin.PWM(0, g.freq)
}

func (g *GPIO) SetDuty(percent uint8) {
	if percent > 100 {
		percent = 100
	}
	duty := gpio.Duty(int64(gpio.DutyMax) * int64(percent) / 100)
	if err := g.pin.PWM(duty, g.freq); err != nil {
		g.lastEr = err
	}
}

// Release halts PWM and leaves the pin as a floating input.
func (g *GPIO) Release() error {
	if err := g.pin.Halt(); err != nil {
		return err
	}
	return g.pin.In(gpio.Float, gpio.NoEdge)
}
