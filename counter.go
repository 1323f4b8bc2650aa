package rollup

// CounterProducer emits the last-observed value in a bucket for a counter
// metric. Because the document stream arrives timestamp-descending within
// a series (spec.md §3 invariant 1), "last observed" is whichever document
// the first Collect call in the bucket carries -- the largest timestamp.
type CounterProducer struct {
	field     string
	collected bool
	value     interface{}
}

func NewCounterProducer(field string) *CounterProducer {
	return &CounterProducer{field: field}
}

func (c *CounterProducer) Name() string { return c.field }

func (c *CounterProducer) Empty() bool { return !c.collected }

func (c *CounterProducer) Collect(doc DocValues) {
	if c.collected || !doc.HasValue() {
		return
	}
	c.value = doc.Values[0]
	c.collected = true
}

func (c *CounterProducer) Reset() {
	c.collected = false
	c.value = nil
}

func (c *CounterProducer) Write(fields fieldWriter) {
	fields.setField(c.field, c.value)
}
