package rollup

import (
	"testing"
	"time"
)

func TestRoundDownFixed(t *testing.T) {
	r := NewFixedRounding(time.Hour, time.UTC)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	cases := []struct {
		in   int64
		want int64
	}{
		{base, base},
		{base + 1, base},
		{base + int64(time.Hour/time.Millisecond) - 1, base},
		{base + int64(time.Hour/time.Millisecond), base + int64(time.Hour/time.Millisecond)},
	}
	for _, c := range cases {
		if got := r.RoundDown(c.in); got != c.want {
			t.Errorf("RoundDown(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestRoundDownFixedMonotonic(t *testing.T) {
	r := NewFixedRounding(37*time.Minute, time.UTC)
	base := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC).UnixMilli()

	prev := r.RoundDown(base)
	for i := int64(1); i < 10000; i++ {
		cur := r.RoundDown(base + i*1000)
		if cur < prev {
			t.Fatalf("RoundDown not monotonic at step %d: prev=%d cur=%d", i, prev, cur)
		}
		prev = cur
	}
}

func TestRoundDownCalendarDay(t *testing.T) {
	r := NewCalendarRounding(CalendarDay, time.UTC)
	in := time.Date(2026, 6, 15, 13, 45, 30, 0, time.UTC).UnixMilli()
	want := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got := r.RoundDown(in); got != want {
		t.Errorf("RoundDown(day) = %d, want %d", got, want)
	}
}

func TestRoundDownCalendarMonth(t *testing.T) {
	r := NewCalendarRounding(CalendarMonth, time.UTC)
	in := time.Date(2026, 6, 15, 13, 45, 30, 0, time.UTC).UnixMilli()
	want := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got := r.RoundDown(in); got != want {
		t.Errorf("RoundDown(month) = %d, want %d", got, want)
	}
}

func TestRoundDownCalendarQuarter(t *testing.T) {
	r := NewCalendarRounding(CalendarQuarter, time.UTC)
	in := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	want := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if got := r.RoundDown(in); got != want {
		t.Errorf("RoundDown(quarter) = %d, want %d", got, want)
	}
}

func TestRoundDownResultIsItsOwnFixedPoint(t *testing.T) {
	r := NewFixedRounding(15*time.Minute, time.UTC)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for offset := int64(0); offset < int64(time.Hour/time.Millisecond); offset += 997 {
		down := r.RoundDown(base + offset)
		if r.RoundDown(down) != down {
			t.Errorf("RoundDown(%d) = %d is not its own fixed point", base+offset, down)
		}
	}
}

func TestDownsampleConfigRoundingFixed(t *testing.T) {
	cfg := DownsampleConfig{IntervalKind: FixedInterval, FixedInterval: "5m"}
	r, err := cfg.Rounding()
	if err != nil {
		t.Fatalf("Rounding() error: %v", err)
	}
	if r.Kind != FixedInterval || r.Fixed != 5*time.Minute {
		t.Errorf("unexpected rounding: %+v", r)
	}
}

func TestDownsampleConfigRoundingCalendar(t *testing.T) {
	cfg := DownsampleConfig{IntervalKind: CalendarInterval, CalendarInterval: CalendarHour}
	r, err := cfg.Rounding()
	if err != nil {
		t.Fatalf("Rounding() error: %v", err)
	}
	if r.Kind != CalendarInterval || r.Calendar != CalendarHour {
		t.Errorf("unexpected rounding: %+v", r)
	}
}

func TestNewTimeZoneRejectsUnknownName(t *testing.T) {
	if _, err := NewTimeZone("Nowhere/Fictional"); err == nil {
		t.Fatal("expected error for unknown zone name")
	}
}
