package rollup

import (
	"time"

	"github.com/influxdata/influxql"
)

// MetricType distinguishes the two metric kinds spec.md §3 defines
// aggregation semantics for.
type MetricType int

const (
	MetricGauge MetricType = iota
	MetricCounter
)

// Aggregation is one of the four gauge sub-values an AggregateMetricField
// can carry.
type Aggregation int

const (
	AggMin Aggregation = iota
	AggMax
	AggSum
	AggValueCount
)

// MetricField describes one configured metric field.
type MetricField struct {
	Name string
	Type MetricType
	// Aggregations lists the gauge sub-values configured for the field.
	// The engine does not consult it: every gauge emits all four
	// sub-values, and counters always emit a single scalar.
	Aggregations []Aggregation
}

// LabelField describes one configured label field.
type LabelField struct {
	Name string
}

// FieldLists is the set of metric and label fields the engine is
// configured to roll up, per spec.md §6.1.
type FieldLists struct {
	Metrics []MetricField
	Labels  []LabelField
}

// DownsampleConfig is the shard-independent configuration of a downsample
// task: the bucketing interval, time zone, and the name of the field that
// carries the source timestamp.
type DownsampleConfig struct {
	IntervalKind     IntervalKind
	FixedInterval    string // parsed with influxql.ParseDuration when IntervalKind == FixedInterval
	CalendarInterval CalendarUnit
	TimeZone         *TimeZone
	TimestampField   string
}

// TimeZone pairs a configured zone name with its resolved *time.Location,
// so construction failures (an unknown zone name) surface once, at config
// build time, rather than on every RoundDown call.
type TimeZone struct {
	Name string
	Loc  *time.Location
}

// NewTimeZone resolves name via time.LoadLocation.
func NewTimeZone(name string) (*TimeZone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return &TimeZone{Name: name, Loc: loc}, nil
}

func (tz *TimeZone) location() *time.Location {
	if tz == nil || tz.Loc == nil {
		return time.UTC
	}
	return tz.Loc
}

// Rounding builds the Rounding value this config implies.
func (c DownsampleConfig) Rounding() (Rounding, error) {
	zone := c.TimeZone.location()
	if c.IntervalKind == CalendarInterval {
		return NewCalendarRounding(c.CalendarInterval, zone), nil
	}
	d, err := influxql.ParseDuration(c.FixedInterval)
	if err != nil {
		return Rounding{}, err
	}
	return NewFixedRounding(d, zone), nil
}

// ShardTaskParams are the per-invocation parameters for one shard, per
// spec.md §6.1.
type ShardTaskParams struct {
	TargetIndex       string
	ShardID           uint64
	TimeSeriesStartMs int64
	TimeSeriesEndMs   int64
}
