package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	got := c.Now()
	if got.Before(before) {
		t.Errorf("RealClock.Now() = %v, earlier than %v", got, before)
	}
	if c.Since(before) < 0 {
		t.Error("Since should not be negative")
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 12, 25, 13, 5, 30, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("Since(start) = %v, want 90s", got)
	}

	later := start.Add(24 * time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", c.Now(), later)
	}
}

func TestISO8601(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2025, 1, 21, 10, 0, 0, 0, loc)
	if got, want := ISO8601(ts), "2025-01-21T04:30:00.000000Z"; got != want {
		t.Errorf("ISO8601() = %q, want %q", got, want)
	}
}

func TestFromUnix(t *testing.T) {
	got := FromUnix(1700000000.25)
	if got.Unix() != 1700000000 {
		t.Errorf("Unix() = %d", got.Unix())
	}
	if ms := got.Nanosecond() / 1e6; ms != 250 {
		t.Errorf("milliseconds = %d, want 250", ms)
	}
}
