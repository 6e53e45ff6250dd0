package timex

import (
	"testing"
	"time"
)

func TestElapsedAcrossWrap(t *testing.T) {
	since := ^uint32(0) - 4 // 5us before wrap
	now := uint32(10)
	if got := Elapsed(now, since); got != 15 {
		t.Fatalf("Elapsed across wrap = %d, want 15", got)
	}
	if got := Elapsed(100, 40); got != 60 {
		t.Fatalf("Elapsed = %d, want 60", got)
	}
}

func TestMicros(t *testing.T) {
	if Micros(-time.Second) != 0 {
		t.Fatal("negative duration should be 0")
	}
	if Micros(50*time.Millisecond) != 50000 {
		t.Fatal("50ms should be 50000us")
	}
	if Micros(200*time.Hour) != ^uint32(0) {
		t.Fatal("long duration should saturate")
	}
}

func TestSystemClockAdvances(t *testing.T) {
	c := NewSystemClock()
	a := c.Micros()
	time.Sleep(2 * time.Millisecond)
	if Elapsed(c.Micros(), a) < 1000 {
		t.Fatal("system clock did not advance")
	}
}
