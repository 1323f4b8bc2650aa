package rollup

import "time"

// IntervalKind distinguishes a fixed-duration downsample interval from a
// calendar-unit one. Calendar units align to civil boundaries (respecting
// DST) in the configured time zone; fixed units align to epoch modulo the
// duration, translated by the zone's UTC offset at that instant.
type IntervalKind int

const (
	FixedInterval IntervalKind = iota
	CalendarInterval
)

// CalendarUnit enumerates the calendar boundaries a CalendarInterval can
// align to. Year and Quarter extend spec.md's literal month/day/hour
// examples; Elasticsearch's own downsample calendar intervals support both.
type CalendarUnit int

const (
	CalendarMinute CalendarUnit = iota
	CalendarHour
	CalendarDay
	CalendarMonth
	CalendarQuarter
	CalendarYear
)

// Rounding maps a source timestamp (epoch milliseconds) to its bucket-start
// timestamp under a fixed interval or calendar unit and a time zone.
// RoundDown is pure, allocation-free (aside from the time.Time values it
// necessarily constructs and discards), and monotonic in its argument: for
// any a <= b, RoundDown(a) <= RoundDown(b).
type Rounding struct {
	Kind     IntervalKind
	Fixed    time.Duration // meaningful when Kind == FixedInterval
	Calendar CalendarUnit  // meaningful when Kind == CalendarInterval
	Zone     *time.Location
}

// NewFixedRounding returns a Rounding for a fixed-duration interval in the
// given zone. Zone defaults to UTC if nil.
func NewFixedRounding(interval time.Duration, zone *time.Location) Rounding {
	if zone == nil {
		zone = time.UTC
	}
	return Rounding{Kind: FixedInterval, Fixed: interval, Zone: zone}
}

// NewCalendarRounding returns a Rounding for a calendar-unit interval in the
// given zone. Zone defaults to UTC if nil.
func NewCalendarRounding(unit CalendarUnit, zone *time.Location) Rounding {
	if zone == nil {
		zone = time.UTC
	}
	return Rounding{Kind: CalendarInterval, Calendar: unit, Zone: zone}
}

// RoundDown returns the largest bucket-start timestamp (epoch milliseconds)
// less than or equal to tMs.
func (r Rounding) RoundDown(tMs int64) int64 {
	if r.Kind == FixedInterval {
		return roundDownFixed(tMs, r.Fixed, r.Zone)
	}
	return roundDownCalendar(tMs, r.Calendar, r.Zone)
}

func roundDownFixed(tMs int64, interval time.Duration, zone *time.Location) int64 {
	if interval <= 0 {
		return tMs
	}
	intervalMs := interval.Milliseconds()

	// Align to epoch modulo the interval, then shift by the zone's UTC
	// offset at tMs so that e.g. a 1h interval produces boundaries at
	// local, not UTC, clock hours.
	_, offsetSec := time.UnixMilli(tMs).In(zone).Zone()
	offsetMs := int64(offsetSec) * 1000

	shifted := tMs + offsetMs
	down := shifted - floorMod(shifted, intervalMs)
	return down - offsetMs
}

// floorMod returns the non-negative remainder of a/b, matching the
// mathematical floor-division remainder rather than Go's truncating %.
func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func roundDownCalendar(tMs int64, unit CalendarUnit, zone *time.Location) int64 {
	t := time.UnixMilli(tMs).In(zone)

	var down time.Time
	switch unit {
	case CalendarMinute:
		down = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, zone)
	case CalendarHour:
		down = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, zone)
	case CalendarDay:
		down = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, zone)
	case CalendarMonth:
		down = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, zone)
	case CalendarQuarter:
		qMonth := time.Month(((int(t.Month())-1)/3)*3 + 1)
		down = time.Date(t.Year(), qMonth, 1, 0, 0, 0, 0, zone)
	case CalendarYear:
		down = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, zone)
	default:
		down = t
	}
	return down.UnixMilli()
}
