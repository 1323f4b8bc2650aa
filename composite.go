package rollup

// AggregateCompositeProducer combines several GaugeProducers that share an
// output field name into a single object field, per spec.md §4.2's
// "Aggregate-metric composition": this is the case where the source field
// is itself an aggregate-metric carrying {min,max,sum,value_count}
// doc-values, so one GaugeProducer per sub-key collects independently and
// this composite folds them back together on write.
//
// Combination rule: min = min(mins), max = max(maxes), sum = sum(sums),
// value_count = sum(value_counts).
type AggregateCompositeProducer struct {
	field     string
	gauges    []*GaugeProducer
}

// NewAggregateCompositeProducer groups gauges under field. The grouping is
// fixed at construction, per spec.md §4.3 ("grouping by name ... is fixed
// at construction").
func NewAggregateCompositeProducer(field string, gauges ...*GaugeProducer) *AggregateCompositeProducer {
	return &AggregateCompositeProducer{field: field, gauges: gauges}
}

func (a *AggregateCompositeProducer) Name() string { return a.field }

func (a *AggregateCompositeProducer) Empty() bool {
	for _, g := range a.gauges {
		if !g.Empty() {
			return false
		}
	}
	return true
}

func (a *AggregateCompositeProducer) Collect(doc DocValues) {
	// Composite producers are never collected into directly; BucketBuilder
	// dispatches to each sub-gauge according to which source sub-field
	// supplied the doc-values. Collect exists only to satisfy
	// FieldProducer so a composite can sit in the same producer slice.
}

func (a *AggregateCompositeProducer) Reset() {
	for _, g := range a.gauges {
		g.Reset()
	}
}

func (a *AggregateCompositeProducer) Write(fields fieldWriter) {
	combined := AggregateMetricValue{}
	first := true
	for _, g := range a.gauges {
		if g.Empty() {
			continue
		}
		v := g.value()
		if first {
			combined.Min, combined.Max = v.Min, v.Max
			first = false
		} else {
			if v.Min < combined.Min {
				combined.Min = v.Min
			}
			if v.Max > combined.Max {
				combined.Max = v.Max
			}
		}
		combined.Sum += v.Sum
		combined.ValueCount += v.ValueCount
	}
	fields.setField(a.field, combined)
}

// Gauges exposes the sub-producers so the Collector can route a document's
// sub-field doc-values (min/max/sum/value_count) to the right one.
func (a *AggregateCompositeProducer) Gauges() []*GaugeProducer { return a.gauges }
