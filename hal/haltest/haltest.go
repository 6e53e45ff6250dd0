// Package haltest provides recording doubles for the hal interfaces and a
// manual clock, so driver timing can be tested without hardware.
package haltest

import (
	"time"

	"robotdemo-go/hal"
	"robotdemo-go/x/timex"
)

// Clock is a manual wrapping microsecond counter. Each Micros call returns
// the current value and then advances it by Step, which lets code that polls
// the clock in a loop make progress.
type Clock struct {
	now  uint32
	Step uint32
}

func NewClock(start uint32) *Clock { return &Clock{now: start} }

func (c *Clock) Micros() uint32 {
	v := c.now
	c.now += c.Step
	return v
}

// Now returns the counter without advancing it.
func (c *Clock) Now() uint32 { return c.now }

func (c *Clock) Set(us uint32)           { c.now = us }
func (c *Clock) AdvanceMicros(us uint32) { c.now += us }
func (c *Clock) Advance(d time.Duration) { c.now += timex.Micros(d) }

// Mode is the configured direction of a Pin double.
type Mode uint8

const (
	ModeUnset Mode = iota
	ModeInput
	ModeOutput
)

// Write is one recorded Set call.
type Write struct {
	At    uint32
	Level bool
}

// Pin records every level written to it. When Clock is set, writes are
// stamped with the clock value at the time of the call.
type Pin struct {
	Clock  *Clock
	Mode   Mode
	Pull   hal.Pull
	Level  bool
	Writes []Write

	ConfigureErr error
}

var (
	_ hal.DigitalOutput = (*Pin)(nil)
	_ hal.DigitalInput  = (*Pin)(nil)
)

func (p *Pin) ConfigureInput(pull hal.Pull) error {
	if p.ConfigureErr != nil {
		return p.ConfigureErr
	}
	p.Mode = ModeInput
	p.Pull = pull
	return nil
}

func (p *Pin) ConfigureOutput(initial bool) error {
	if p.ConfigureErr != nil {
		return p.ConfigureErr
	}
	p.Mode = ModeOutput
	p.Level = initial
	return nil
}

func (p *Pin) Set(level bool) {
	var at uint32
	if p.Clock != nil {
		at = p.Clock.Now()
	}
	p.Level = level
	p.Writes = append(p.Writes, Write{At: at, Level: level})
}

func (p *Pin) Get() bool { return p.Level }

// Levels returns the written levels in order.
func (p *Pin) Levels() []bool {
	out := make([]bool, len(p.Writes))
	for i, w := range p.Writes {
		out[i] = w.Level
	}
	return out
}

// PWM records duty writes for one channel.
type PWM struct {
	FreqHz     uint32
	Configured bool
	Released   bool
	Duties     []uint8

	ConfigureErr error
}

var _ hal.PwmOutput = (*PWM)(nil)

func (p *PWM) Configure(freqHz uint32) error {
	if p.ConfigureErr != nil {
		return p.ConfigureErr
	}
	p.FreqHz = freqHz
	p.Configured = true
	p.Released = false
	return nil
}

func (p *PWM) SetDuty(percent uint8) {
	if percent > 100 {
		percent = 100
	}
	p.Duties = append(p.Duties, percent)
}

func (p *PWM) Release() error {
	p.Released = true
	p.Configured = false
	return nil
}

// Duty is the last written duty, 0 if none.
func (p *PWM) Duty() uint8 {
	if len(p.Duties) == 0 {
		return 0
	}
	return p.Duties[len(p.Duties)-1]
}

// Pulses hands out queued echo durations, then Default once the queue is
// empty.
type Pulses struct {
	Clock   *Clock
	Queue   []time.Duration
	Default time.Duration

	Reads       int
	LastLevel   bool
	LastTimeout time.Duration
	ReadAt      []uint32
}

var _ hal.PulseReader = (*Pulses)(nil)

func (p *Pulses) ReadPulse(level bool, timeout time.Duration) time.Duration {
	p.Reads++
	p.LastLevel = level
	p.LastTimeout = timeout
	if p.Clock != nil {
		p.ReadAt = append(p.ReadAt, p.Clock.Now())
	}
	if len(p.Queue) == 0 {
		return p.Default
	}
	d := p.Queue[0]
	p.Queue = p.Queue[1:]
	return d
}
