// Package hal holds the small capability interfaces drivers are written
// against. Platforms (periph on Linux, machine on MCUs, test doubles) provide
// the implementations.
package hal

import "time"

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

// Pin can be switched between input and output. Configuring a pin as an
// input is the safe state used on teardown.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
}

type DigitalOutput interface {
	Pin
	Set(level bool)
}

type DigitalInput interface {
	Pin
	Get() bool
}

// PwmOutput is one PWM channel driven by duty percentage in [0,100].
// Values above 100 are treated as 100.
type PwmOutput interface {
	Configure(freqHz uint32) error
	SetDuty(percent uint8)
	// Release stops the output and returns the pin to a high-impedance input.
	Release() error
}

// PulseReader measures how long a line stays at level, waiting at most
// timeout for the pulse to start and end. It returns 0 on timeout. This is
// a blocking call.
type PulseReader interface {
	ReadPulse(level bool, timeout time.Duration) time.Duration
}
