package rollup

// LabelProducer emits the last-observed value for a label field, with the
// same first-Collect-wins semantics as CounterProducer (spec.md §4.2).
// Unlike a counter, a label's value is a typed passthrough -- string,
// numeric, boolean, or an array of any of those -- preserved verbatim.
type LabelProducer struct {
	field     string
	collected bool
	value     interface{}
}

func NewLabelProducer(field string) *LabelProducer {
	return &LabelProducer{field: field}
}

func (l *LabelProducer) Name() string { return l.field }

func (l *LabelProducer) Empty() bool { return !l.collected }

func (l *LabelProducer) Collect(doc DocValues) {
	if l.collected || !doc.HasValue() {
		return
	}
	if len(doc.Values) == 1 {
		l.value = doc.Values[0]
	} else {
		l.value = append([]interface{}{}, doc.Values...)
	}
	l.collected = true
}

func (l *LabelProducer) Reset() {
	l.collected = false
	l.value = nil
}

func (l *LabelProducer) Write(fields fieldWriter) {
	fields.setField(l.field, l.value)
}
