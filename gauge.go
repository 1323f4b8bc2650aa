package rollup

import "math"

// GaugeProducer accumulates min/max/sum/value_count for one numeric gauge
// field over the current bucket. Sum uses Kahan-compensated summation to
// bound floating-point error over long buckets (spec.md §4.2, "Numeric
// semantics").
type GaugeProducer struct {
	field string

	min, max   float64
	sum        float64
	sumErr     float64 // Kahan compensation term
	valueCount int64
}

// NewGaugeProducer returns a GaugeProducer for the given output field name.
func NewGaugeProducer(field string) *GaugeProducer {
	g := &GaugeProducer{field: field}
	g.Reset()
	return g
}

func (g *GaugeProducer) Name() string { return g.field }

func (g *GaugeProducer) Empty() bool { return g.valueCount == 0 }

func (g *GaugeProducer) Collect(doc DocValues) {
	if !doc.HasValue() {
		return
	}
	for _, v := range doc.Values {
		f, ok := toFloat64(v)
		if !ok {
			continue
		}
		g.collectOne(f)
	}
}

func (g *GaugeProducer) collectOne(v float64) {
	if g.valueCount == 0 {
		g.min, g.max = v, v
	} else {
		if v < g.min {
			g.min = v
		}
		if v > g.max {
			g.max = v
		}
	}
	g.kahanAdd(v)
	g.valueCount++
}

// kahanAdd implements the Kahan summation step: track the low-order bits
// lost on each addition in sumErr and fold them back in, rather than
// letting them accumulate into a naive running sum.
func (g *GaugeProducer) kahanAdd(v float64) {
	y := v - g.sumErr
	t := g.sum + y
	g.sumErr = (t - g.sum) - y
	g.sum = t
}

func (g *GaugeProducer) Reset() {
	g.min, g.max, g.sum, g.sumErr = 0, 0, 0, 0
	g.valueCount = 0
}

func (g *GaugeProducer) Write(fields fieldWriter) {
	fields.setField(g.field, g.value())
}

func (g *GaugeProducer) value() AggregateMetricValue {
	return AggregateMetricValue{Min: g.min, Max: g.max, Sum: g.sum, ValueCount: g.valueCount}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// isNaN reports whether v is NaN.
func isNaN(v float64) bool { return math.IsNaN(v) }
