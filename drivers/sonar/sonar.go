// Package sonar drives an HC-SR04 style ultrasonic range finder: a short
// trigger pulse starts a ping and the echo line stays high for the round
// trip time of the sound.
package sonar

import (
	"time"

	"robotdemo-go/errcode"
	"robotdemo-go/hal"
	"robotdemo-go/x/mathx"
	"robotdemo-go/x/timex"
)

// Mode selects when Update measures.
type Mode uint8

const (
	// Manual measures once per StartMeasurement.
	Manual Mode = iota
	// Automatic measures on every Update.
	Automatic
)

func (m Mode) String() string {
	if m == Automatic {
		return "automatic"
	}
	return "manual"
}

// ParseMode accepts "manual" and "automatic".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "manual":
		return Manual, true
	case "automatic":
		return Automatic, true
	}
	return Manual, false
}

// State is the position in the measurement cycle.
type State uint8

const (
	Idle State = iota
	TriggerLow
	TriggerHigh
	AwaitingEcho
)

func (s State) String() string {
	switch s {
	case TriggerLow:
		return "trigger_low"
	case TriggerHigh:
		return "trigger_high"
	case AwaitingEcho:
		return "awaiting_echo"
	default:
		return "idle"
	}
}

const (
	MinDistanceCm = 0
	MaxDistanceCm = 400

	// Speed of sound is 343 m/s, i.e. 343 cm per 10000 us. The echo covers
	// the distance twice.
	soundCmPer10kUs = 343
	roundTripDiv    = 2 * 10000

	DefaultEchoTimeout = 30 * time.Millisecond
	DefaultLowHold     = 2 * time.Microsecond
	DefaultHighHold    = 10 * time.Microsecond
)

// Config tunes a Sonar. Zero durations take the defaults above.
type Config struct {
	Mode        Mode
	EchoTimeout time.Duration
	LowHold     time.Duration
	HighHold    time.Duration
}

func (c Config) withDefaults() Config {
	if c.EchoTimeout <= 0 {
		c.EchoTimeout = DefaultEchoTimeout
	}
	if c.LowHold < DefaultLowHold {
		c.LowHold = DefaultLowHold
	}
	if c.HighHold < DefaultHighHold {
		c.HighHold = DefaultHighHold
	}
	return c
}

type Sonar struct {
	trig   hal.DigitalOutput
	echo   hal.DigitalInput
	pulses hal.PulseReader
	clk    timex.Clock
	cfg    Config

	mode      Mode
	measuring bool
	state     State
	distance  uint16
	echoOK    bool
	cycles    uint32
}

func New(trig hal.DigitalOutput, echo hal.DigitalInput, pulses hal.PulseReader, clk timex.Clock, cfg Config) (*Sonar, error) {
	if trig == nil || echo == nil || pulses == nil || clk == nil {
		return nil, errcode.InvalidParams
	}
	cfg = cfg.withDefaults()
	return &Sonar{
		trig:   trig,
		echo:   echo,
		pulses: pulses,
		clk:    clk,
		cfg:    cfg,
		mode:   cfg.Mode,
	}, nil
}

// Init drives the trigger low and makes the echo pin an input.
func (s *Sonar) Init() error {
	if err := s.trig.ConfigureOutput(false); err != nil {
		return errcode.Wrap(errcode.NotReady, "sonar.init", err)
	}
	if err := s.echo.ConfigureInput(hal.PullNone); err != nil {
		return errcode.Wrap(errcode.NotReady, "sonar.init", err)
	}
	s.state = Idle
	return nil
}

func (s *Sonar) SetMode(m Mode) { s.mode = m }
func (s *Sonar) Mode() Mode     { return s.mode }

// StartMeasurement requests one cycle on the next Update. Ignored in
// Automatic mode.
func (s *Sonar) StartMeasurement() {
	if s.mode == Manual {
		s.measuring = true
	}
}

// Update runs a measurement cycle when the mode asks for one.
func (s *Sonar) Update() {
	if s.mode == Automatic {
		s.measure()
		return
	}
	if s.measuring {
		s.measure()
		s.measuring = false
	}
}

// measure runs one full cycle. The trigger edges are paced by polling the
// clock; only the echo read blocks.
func (s *Sonar) measure() {
	low := timex.Micros(s.cfg.LowHold)
	high := timex.Micros(s.cfg.HighHold)

	s.state = TriggerLow
	s.trig.Set(false)
	s.hold(low)

	s.state = TriggerHigh
	s.trig.Set(true)
	s.hold(high)
	s.trig.Set(false)

	s.state = AwaitingEcho
	pulse := s.pulses.ReadPulse(true, s.cfg.EchoTimeout)
	s.echoOK = pulse > 0
	s.distance = ClampDistance(DistanceFromPulse(pulse))
	s.cycles++
	s.state = Idle
}

// hold polls the clock until us microseconds have passed.
func (s *Sonar) hold(us uint32) {
	ref := s.clk.Micros()
	for timex.Elapsed(s.clk.Micros(), ref) < us {
	}
}

// DistanceFromPulse converts an echo pulse to whole centimetres, truncated
// toward zero, without range limits.
func DistanceFromPulse(pulse time.Duration) int64 {
	return pulse.Microseconds() * soundCmPer10kUs / roundTripDiv
}

// ClampDistance limits a raw distance to the sensor range.
func ClampDistance(cm int64) uint16 {
	return uint16(mathx.Clamp(cm, MinDistanceCm, MaxDistanceCm))
}

// Measuring reports a pending manual request.
func (s *Sonar) Measuring() bool { return s.measuring }

// Distance is the last measured distance in centimetres, in [0, 400]. A
// missing echo reads as 0; check EchoOK to tell it from a close object.
func (s *Sonar) Distance() uint16 { return s.distance }

// EchoOK is false when the last cycle saw no echo before the timeout.
func (s *Sonar) EchoOK() bool { return s.echoOK }

// Config returns the effective configuration, defaults applied. Mode is the
// mode given to New, not the current one.
func (s *Sonar) Config() Config { return s.cfg }

func (s *Sonar) State() State   { return s.state }
func (s *Sonar) Cycles() uint32 { return s.cycles }

// Close drives the trigger low and leaves both pins as inputs.
func (s *Sonar) Close() error {
	s.trig.Set(false)
	s.measuring = false
	if err := s.trig.ConfigureInput(hal.PullNone); err != nil {
		return err
	}
	return s.echo.ConfigureInput(hal.PullNone)
}
