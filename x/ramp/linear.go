package ramp

import (
	"golang.org/x/exp/constraints"

	"robotdemo-go/x/mathx"
	"robotdemo-go/x/timex"
)

// StepToward moves cur one unit toward to. It never overshoots and reports
// whether cur changed.
func StepToward[T constraints.Signed](cur, to T) (T, bool) {
	switch {
	case cur < to:
		return cur + 1, true
	case cur > to:
		return cur - 1, true
	}
	return cur, false
}

// Gate opens at most once per interval on a wrapping microsecond counter.
// The zero Gate is open on its first poll.
type Gate struct {
	last  uint32
	armed bool
}

// Due reports whether at least interval has passed since the last time the
// gate opened, and if so re-arms it at now.
func (g *Gate) Due(now, interval uint32) bool {
	if g.armed && timex.Elapsed(now, g.last) < interval {
		return false
	}
	g.last = now
	g.armed = true
	return true
}

// Reset makes the next Due open immediately.
func (g *Gate) Reset() { g.armed = false }

// Arm starts a full interval at now.
func (g *Gate) Arm(now uint32) {
	g.last = now
	g.armed = true
}

// Linear is a caller-polled integer ramp bounded to [Lo, Hi]: each time the
// gate opens Current moves one unit toward Target.
type Linear[T constraints.Signed] struct {
	Current T
	Target  T
	Lo, Hi  T
	gate    Gate
}

// SetTarget clamps v into [Lo, Hi].
func (l *Linear[T]) SetTarget(v T) { l.Target = mathx.Clamp(v, l.Lo, l.Hi) }

// Snap sets both Current and Target to v (clamped) without ramping.
func (l *Linear[T]) Snap(v T) {
	v = mathx.Clamp(v, l.Lo, l.Hi)
	l.Current, l.Target = v, v
	l.gate.Reset()
}

// Arm makes the next step wait a full interval from now.
func (l *Linear[T]) Arm(now uint32) { l.gate.Arm(now) }

// Tick advances the ramp if interval microseconds have passed since the last
// step. due is true when the interval elapsed; moved is true when Current
// changed.
func (l *Linear[T]) Tick(now, interval uint32) (due, moved bool) {
	if !l.gate.Due(now, interval) {
		return false, false
	}
	l.Current, moved = StepToward(l.Current, l.Target)
	return true, moved
}
