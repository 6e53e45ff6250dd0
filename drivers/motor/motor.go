// Package motor drives a brushed DC motor through an H-bridge (L298N style)
// using two PWM channels, one per direction. The commanded speed is reached
// through a rate-limited ramp that advances one percent per step; the step
// interval shrinks as the acceleration setting grows.
//
// The driver is polled: call Update on every iteration of the host loop.
package motor

import (
	"errors"
	"time"

	"robotdemo-go/errcode"
	"robotdemo-go/hal"
	"robotdemo-go/x/mathx"
	"robotdemo-go/x/ramp"
	"robotdemo-go/x/timex"
)

const (
	MinSpeed = -100
	MaxSpeed = 100

	MinAcceleration = 0
	MaxAcceleration = 100

	// Step interval at acceleration 100 and 0 respectively.
	DefaultMinInterval = 100 * time.Microsecond
	DefaultMaxInterval = 50 * time.Millisecond

	DefaultFrequencyHz = 33000
)

// Config tunes a Motor. Zero fields take the defaults above.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	FrequencyHz uint32
	// Inverted swaps the forward and backward channels for motors wired
	// with reversed polarity.
	Inverted bool
}

func (c Config) withDefaults() Config {
	if c.MinInterval == 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	if c.FrequencyHz == 0 {
		c.FrequencyHz = DefaultFrequencyHz
	}
	return c
}

type Motor struct {
	fwd hal.PwmOutput
	bwd hal.PwmOutput
	clk timex.Clock
	cfg Config

	speed   ramp.Linear[int8]
	accel   uint8
	enabled bool
	ramping bool

	dutyFwd uint8
	dutyBwd uint8

	runArmed bool
	runLast  uint32
	runLeft  time.Duration
}

// New wires a motor to its forward and backward channels. The motor stays
// disabled until Init.
func New(fwd, bwd hal.PwmOutput, clk timex.Clock, cfg Config) (*Motor, error) {
	if fwd == nil || bwd == nil || clk == nil {
		return nil, errcode.InvalidParams
	}
	cfg = cfg.withDefaults()
	if cfg.MinInterval < 0 || cfg.MinInterval > cfg.MaxInterval {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "motor.new", Msg: "min interval above max interval"}
	}
	return &Motor{
		fwd:   fwd,
		bwd:   bwd,
		clk:   clk,
		cfg:   cfg,
		speed: ramp.Linear[int8]{Lo: MinSpeed, Hi: MaxSpeed},
		accel: MaxAcceleration,
	}, nil
}

// Init configures both channels at zero duty and enables the driver.
func (m *Motor) Init() error {
	if err := m.fwd.Configure(m.cfg.FrequencyHz); err != nil {
		return errcode.Wrap(errcode.NotReady, "motor.init", err)
	}
	if err := m.bwd.Configure(m.cfg.FrequencyHz); err != nil {
		return errcode.Wrap(errcode.NotReady, "motor.init", err)
	}
	m.accel = MaxAcceleration
	m.speed.Snap(0)
	m.speed.Arm(m.clk.Micros())
	m.ramping = false
	m.runArmed = false
	m.fwd.SetDuty(0)
	m.bwd.SetDuty(0)
	m.dutyFwd, m.dutyBwd = 0, 0
	m.enabled = true
	return nil
}

// SetTarget sets the speed the ramp moves toward, in percent. Values outside
// [-100, 100] are clamped. Outputs change on the following Update calls.
func (m *Motor) SetTarget(speed int) {
	m.speed.SetTarget(int8(mathx.Clamp(speed, MinSpeed, MaxSpeed)))
	m.runArmed = false
}

// SetAcceleration clamps value to [0, 100]. 0 ramps slowest.
func (m *Motor) SetAcceleration(value int) {
	m.accel = uint8(mathx.Clamp(value, MinAcceleration, MaxAcceleration))
}

// RunFor ramps to speed and, once d has elapsed, ramps back to 0. The
// remaining time counts down on every Update, so d may exceed the wrap
// period of the microsecond clock as long as Update runs more often than
// that.
func (m *Motor) RunFor(speed int, d time.Duration) {
	m.SetTarget(speed)
	m.runLast = m.clk.Micros()
	m.runLeft = d
	m.runArmed = true
}

// Interval is the time between two ramp steps at the current acceleration.
func (m *Motor) Interval() time.Duration {
	us := mathx.Map(int64(m.accel), MinAcceleration, MaxAcceleration,
		m.cfg.MaxInterval.Microseconds(), m.cfg.MinInterval.Microseconds())
	return time.Duration(us) * time.Microsecond
}

// Update advances the ramp by at most one step and refreshes the duty
// cycles. A disabled motor holds both channels at zero.
func (m *Motor) Update() {
	if !m.enabled {
		m.ramping = false
		m.drive(0)
		return
	}
	now := m.clk.Micros()
	if m.runArmed {
		m.runLeft -= time.Duration(timex.Elapsed(now, m.runLast)) * time.Microsecond
		m.runLast = now
		if m.runLeft <= 0 {
			m.runArmed = false
			m.speed.SetTarget(0)
		}
	}
	_, m.ramping = m.speed.Tick(now, timex.Micros(m.Interval()))
	m.drive(m.speed.Current)
}

// drive splits a signed speed across the two channels so that at most one
// of them carries a nonzero duty.
func (m *Motor) drive(speed int8) {
	var fwd, bwd uint8
	if speed < 0 {
		bwd = uint8(mathx.Abs(int16(speed)))
	} else {
		fwd = uint8(speed)
	}
	if m.cfg.Inverted {
		fwd, bwd = bwd, fwd
	}
	// Lower the falling channel first so both are never high together.
	if fwd < m.dutyFwd {
		m.fwd.SetDuty(fwd)
		m.dutyFwd = fwd
	}
	if bwd != m.dutyBwd {
		m.bwd.SetDuty(bwd)
		m.dutyBwd = bwd
	}
	if fwd != m.dutyFwd {
		m.fwd.SetDuty(fwd)
		m.dutyFwd = fwd
	}
}

// Stop zeroes speed and target at once, restores full acceleration and
// disables the driver. It returns the enabled state, which is false.
func (m *Motor) Stop() bool {
	m.accel = MaxAcceleration
	m.speed.Snap(0)
	m.runArmed = false
	m.ramping = false
	m.drive(0)
	m.enabled = false
	return m.enabled
}

// Close stops the motor and releases both channels.
func (m *Motor) Close() error {
	m.Stop()
	return errors.Join(m.fwd.Release(), m.bwd.Release())
}

// Config returns the effective configuration, defaults applied.
func (m *Motor) Config() Config { return m.cfg }

func (m *Motor) Ramping() bool          { return m.ramping }
func (m *Motor) Speed() int8            { return m.speed.Current }
func (m *Motor) Target() int8           { return m.speed.Target }
func (m *Motor) Acceleration() uint8    { return m.accel }
func (m *Motor) Enabled() bool          { return m.enabled }
func (m *Motor) Duty() (fwd, bwd uint8) { return m.dutyFwd, m.dutyBwd }
