package motor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotdemo-go/errcode"
	"robotdemo-go/hal/haltest"
)

type rig struct {
	m   *Motor
	fwd *haltest.PWM
	bwd *haltest.PWM
	clk *haltest.Clock
}

func newRig(t *testing.T, cfg Config) rig {
	t.Helper()
	r := rig{fwd: &haltest.PWM{}, bwd: &haltest.PWM{}, clk: haltest.NewClock(1000)}
	m, err := New(r.fwd, r.bwd, r.clk, cfg)
	require.NoError(t, err)
	require.NoError(t, m.Init())
	r.m = m
	return r
}

// step advances the clock by one full interval and polls once.
func (r rig) step() {
	r.clk.Advance(r.m.Interval())
	r.m.Update()
}

func TestNew_RejectsMissingCollaborators(t *testing.T) {
	_, err := New(nil, &haltest.PWM{}, haltest.NewClock(0), Config{})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = New(&haltest.PWM{}, &haltest.PWM{}, nil, Config{})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = New(&haltest.PWM{}, &haltest.PWM{}, haltest.NewClock(0), Config{
		MinInterval: time.Second,
		MaxInterval: time.Millisecond,
	})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestInit_ConfiguresChannelsAtZero(t *testing.T) {
	r := newRig(t, Config{})

	assert.True(t, r.m.Enabled())
	assert.Equal(t, uint8(MaxAcceleration), r.m.Acceleration())
	assert.Equal(t, uint32(DefaultFrequencyHz), r.fwd.FreqHz)
	assert.Equal(t, uint32(DefaultFrequencyHz), r.bwd.FreqHz)
	assert.Equal(t, []uint8{0}, r.fwd.Duties)
	assert.Equal(t, []uint8{0}, r.bwd.Duties)
}

func TestInit_PropagatesConfigureError(t *testing.T) {
	fwd := &haltest.PWM{ConfigureErr: errors.New("no pwm slice")}
	m, err := New(fwd, &haltest.PWM{}, haltest.NewClock(0), Config{})
	require.NoError(t, err)

	err = m.Init()
	assert.Equal(t, errcode.NotReady, errcode.Of(err))
	assert.False(t, m.Enabled())
}

func TestSetTarget_Clamps(t *testing.T) {
	r := newRig(t, Config{})

	r.m.SetTarget(150)
	assert.Equal(t, int8(100), r.m.Target())
	r.m.SetTarget(-150)
	assert.Equal(t, int8(-100), r.m.Target())
	r.m.SetTarget(42)
	assert.Equal(t, int8(42), r.m.Target())
}

func TestSetTarget_DoesNotTouchOutputs(t *testing.T) {
	r := newRig(t, Config{})
	r.m.SetTarget(80)

	assert.Equal(t, int8(0), r.m.Speed())
	assert.Len(t, r.fwd.Duties, 1)
	assert.Len(t, r.bwd.Duties, 1)
}

func TestSetAcceleration_Clamps(t *testing.T) {
	r := newRig(t, Config{})

	r.m.SetAcceleration(-20)
	assert.Equal(t, uint8(0), r.m.Acceleration())
	r.m.SetAcceleration(250)
	assert.Equal(t, uint8(100), r.m.Acceleration())
}

func TestInterval_MapsAccelerationInversely(t *testing.T) {
	r := newRig(t, Config{})

	r.m.SetAcceleration(0)
	assert.Equal(t, DefaultMaxInterval, r.m.Interval())
	r.m.SetAcceleration(100)
	assert.Equal(t, DefaultMinInterval, r.m.Interval())

	prev := time.Duration(1<<63 - 1)
	for a := 0; a <= 100; a++ {
		r.m.SetAcceleration(a)
		got := r.m.Interval()
		assert.LessOrEqual(t, got, prev, "interval increased at acceleration %d", a)
		assert.GreaterOrEqual(t, got, DefaultMinInterval)
		assert.LessOrEqual(t, got, DefaultMaxInterval)
		prev = got
	}
}

func TestUpdate_RampsMonotonicallyWithoutOvershoot(t *testing.T) {
	for s := -100; s <= 100; s += 25 {
		for tgt := -100; tgt <= 100; tgt += 20 {
			r := newRig(t, Config{})
			r.m.speed.Snap(int8(s))
			r.m.SetTarget(tgt)

			dist := tgt - s
			if dist < 0 {
				dist = -dist
			}
			prev := s
			for i := 0; i < dist; i++ {
				r.step()
				cur := int(r.m.Speed())
				diff := cur - prev
				if diff < 0 {
					diff = -diff
				}
				require.Equal(t, 1, diff, "S=%d T=%d step %d moved %d", s, tgt, i, cur-prev)
				require.True(t, r.m.Ramping(), "S=%d T=%d step %d not ramping", s, tgt, i)
				prev = cur
			}
			require.Equal(t, int8(tgt), r.m.Speed())

			r.step()
			assert.Equal(t, int8(tgt), r.m.Speed(), "moved past target")
			assert.False(t, r.m.Ramping(), "still ramping at target")
		}
	}
}

func TestUpdate_WaitsForInterval(t *testing.T) {
	r := newRig(t, Config{})
	r.m.SetAcceleration(0) // 50ms per step
	r.m.SetTarget(10)

	r.m.Update()
	assert.Equal(t, int8(0), r.m.Speed(), "stepped before the first interval after Init")
	assert.False(t, r.m.Ramping())

	r.clk.Advance(DefaultMaxInterval - time.Microsecond)
	r.m.Update()
	assert.Equal(t, int8(0), r.m.Speed())

	r.clk.Advance(time.Microsecond)
	r.m.Update()
	require.Equal(t, int8(1), r.m.Speed())
	assert.True(t, r.m.Ramping())

	r.clk.Advance(DefaultMaxInterval - time.Microsecond)
	r.m.Update()
	assert.Equal(t, int8(1), r.m.Speed())
	assert.False(t, r.m.Ramping())

	r.clk.Advance(time.Microsecond)
	r.m.Update()
	assert.Equal(t, int8(2), r.m.Speed())
	assert.True(t, r.m.Ramping())
}

func TestUpdate_SurvivesClockWrap(t *testing.T) {
	r := newRig(t, Config{})
	r.m.SetAcceleration(0)
	r.clk.Set(^uint32(0) - 10_000) // 10ms before wrap
	r.m.SetTarget(5)

	r.m.Update()
	require.Equal(t, int8(1), r.m.Speed())

	r.clk.Advance(DefaultMaxInterval) // crosses zero
	r.m.Update()
	assert.Equal(t, int8(2), r.m.Speed())

	r.clk.Advance(DefaultMaxInterval / 2)
	r.m.Update()
	assert.Equal(t, int8(2), r.m.Speed())
}

func TestDuty_Derivation(t *testing.T) {
	cases := []struct {
		speed    int8
		fwd, bwd uint8
	}{
		{-40, 0, 40},
		{40, 40, 0},
		{0, 0, 0},
		{-100, 0, 100},
		{100, 100, 0},
	}
	for _, c := range cases {
		r := newRig(t, Config{})
		r.m.speed.Snap(c.speed)
		r.m.Update()

		fwd, bwd := r.m.Duty()
		assert.Equal(t, c.fwd, fwd, "speed %d", c.speed)
		assert.Equal(t, c.bwd, bwd, "speed %d", c.speed)
		assert.Equal(t, c.fwd, r.fwd.Duty(), "speed %d", c.speed)
		assert.Equal(t, c.bwd, r.bwd.Duty(), "speed %d", c.speed)
	}
}

func TestDuty_InvertedSwapsChannels(t *testing.T) {
	r := newRig(t, Config{Inverted: true})
	r.m.speed.Snap(40)
	r.m.Update()

	assert.Equal(t, uint8(0), r.fwd.Duty())
	assert.Equal(t, uint8(40), r.bwd.Duty())
}

// bridgeWatch watches both channels of one H-bridge and flags any moment
// where both carry a nonzero duty.
type bridgeWatch struct {
	fwd, bwd uint8
	overlap  bool
}

type watchedPWM struct {
	haltest.PWM
	watch   *bridgeWatch
	forward bool
}

func (p *watchedPWM) SetDuty(percent uint8) {
	p.PWM.SetDuty(percent)
	if p.forward {
		p.watch.fwd = percent
	} else {
		p.watch.bwd = percent
	}
	if p.watch.fwd != 0 && p.watch.bwd != 0 {
		p.watch.overlap = true
	}
}

func TestDuty_NeverBothNonZeroThroughReversal(t *testing.T) {
	watch := &bridgeWatch{}
	fwd := &watchedPWM{watch: watch, forward: true}
	bwd := &watchedPWM{watch: watch}
	clk := haltest.NewClock(0)
	m, err := New(fwd, bwd, clk, Config{})
	require.NoError(t, err)
	require.NoError(t, m.Init())

	m.SetTarget(5)
	for i := 0; i < 6; i++ {
		clk.Advance(m.Interval())
		m.Update()
	}
	require.Equal(t, int8(5), m.Speed())

	m.SetTarget(-5)
	for i := 0; i < 11; i++ {
		clk.Advance(m.Interval())
		m.Update()
	}
	require.Equal(t, int8(-5), m.Speed())
	assert.False(t, watch.overlap)
	assert.Equal(t, []uint8{0, 1, 2, 3, 4, 5, 4, 3, 2, 1, 0}, fwd.Duties)
	assert.Equal(t, []uint8{0, 1, 2, 3, 4, 5}, bwd.Duties)
}

func TestStop_ZeroesAndDisables(t *testing.T) {
	r := newRig(t, Config{})
	r.m.SetAcceleration(10)
	r.m.SetTarget(60)
	for i := 0; i < 30; i++ {
		r.step()
	}
	require.Equal(t, int8(30), r.m.Speed())

	enabled := r.m.Stop()

	assert.False(t, enabled)
	assert.False(t, r.m.Enabled())
	assert.Equal(t, int8(0), r.m.Speed())
	assert.Equal(t, int8(0), r.m.Target())
	assert.Equal(t, uint8(MaxAcceleration), r.m.Acceleration())
	assert.Equal(t, uint8(0), r.fwd.Duty())
	assert.Equal(t, uint8(0), r.bwd.Duty())
}

func TestStop_HoldsOutputsUntilInit(t *testing.T) {
	r := newRig(t, Config{})
	r.m.Stop()
	r.m.SetTarget(50)

	r.step()
	r.step()
	assert.Equal(t, int8(0), r.m.Speed())
	assert.Equal(t, uint8(0), r.fwd.Duty())

	require.NoError(t, r.m.Init())
	r.m.SetTarget(50)
	r.step()
	assert.Equal(t, int8(1), r.m.Speed())
}

func TestRunFor_RampsBackToZero(t *testing.T) {
	r := newRig(t, Config{})
	r.m.RunFor(3, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		r.step()
	}
	require.Equal(t, int8(3), r.m.Speed())
	assert.Equal(t, int8(3), r.m.Target())

	r.clk.Advance(10 * time.Millisecond)
	r.m.Update()
	assert.Equal(t, int8(0), r.m.Target())
	assert.Equal(t, int8(2), r.m.Speed())

	r.step()
	r.step()
	assert.Equal(t, int8(0), r.m.Speed())
}

func TestRunFor_LongerThanClockWrap(t *testing.T) {
	r := newRig(t, Config{})
	r.m.RunFor(50, 2*time.Hour)

	// Poll once a second; the counter wraps about every 71.6 minutes.
	poll := func(d time.Duration) {
		for elapsed := time.Duration(0); elapsed < d; elapsed += time.Second {
			r.clk.Advance(time.Second)
			r.m.Update()
		}
	}
	poll(2*time.Hour - 10*time.Second)
	require.Equal(t, int8(50), r.m.Target(), "run ended early")
	require.Equal(t, int8(50), r.m.Speed())

	poll(time.Hour)
	assert.Equal(t, int8(0), r.m.Target(), "run never ended")
	assert.Equal(t, int8(0), r.m.Speed())
}

func TestRunFor_CancelledBySetTarget(t *testing.T) {
	r := newRig(t, Config{})
	r.m.RunFor(3, time.Millisecond)
	r.m.SetTarget(5)

	r.clk.Advance(time.Second)
	r.m.Update()
	assert.Equal(t, int8(5), r.m.Target())
}

func TestClose_ReleasesChannels(t *testing.T) {
	r := newRig(t, Config{})
	r.m.speed.Snap(20)
	r.m.Update()

	require.NoError(t, r.m.Close())
	assert.True(t, r.fwd.Released)
	assert.True(t, r.bwd.Released)
	assert.Equal(t, uint8(0), r.fwd.Duty())
	assert.False(t, r.m.Enabled())
}
