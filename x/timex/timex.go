package timex

import "time"

// Clock is a free-running microsecond counter that wraps at 2^32
// (about 71 minutes), like micros() on a microcontroller.
type Clock interface {
	Micros() uint32
}

// Elapsed returns now-since in microseconds. Unsigned subtraction keeps the
// result correct across a single wraparound of the counter.
func Elapsed(now, since uint32) uint32 { return now - since }

// Micros converts d to whole microseconds, saturating at the counter range.
func Micros(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	us := d.Microseconds()
	if us > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(us)
}

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// SystemClock reads the Go monotonic clock relative to its creation.
type SystemClock struct {
	epoch time.Time
}

func NewSystemClock() *SystemClock { return &SystemClock{epoch: time.Now()} }

// Micros truncates to 32 bits on purpose; callers only use differences.
func (c *SystemClock) Micros() uint32 {
	return uint32(time.Since(c.epoch).Microseconds())
}
