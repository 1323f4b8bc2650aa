package rollup

import "github.com/influxdata/influxdb/models"

// BucketBuilder holds the currently-open bucket's (tsid, bucket-timestamp,
// doc-count, field-producers) and serializes a completed bucket to a
// Document. Per spec.md §9's resolution of the source's sentinel-timestamp
// ambiguity, openness is tracked with an explicit boolean rather than by
// treating a zero timestamp as "unset".
type BucketBuilder struct {
	isOpen        bool
	tsid          TSID
	tsidOrd       int
	bucketStartMs int64

	docCount *DocCountProducer

	// producers is the write-level list: one entry per output field, in
	// composite form (an AggregateCompositeProducer stands in for its
	// grouped gauges). Serialize and resetProducers walk this list.
	producers []FieldProducer

	// collectors is the flat, positional list the Collector dispatches
	// Collect calls into: simple producers appear once, and a
	// composite's sub-gauges each get their own slot here instead of the
	// composite itself (spec.md §4.3: "grouping ... fixed at
	// construction").
	collectors []FieldProducer

	dimensions []Dimension
}

// NewBucketBuilder constructs a builder over the given field producers.
// Grouping for aggregate-metric composition (multiple gauges sharing a
// name) must already be reflected in producers -- pass an
// AggregateCompositeProducer for those, not the bare gauges.
func NewBucketBuilder(producers []FieldProducer) *BucketBuilder {
	b := &BucketBuilder{
		docCount:  NewDocCountProducer(),
		producers: producers,
	}
	for _, p := range producers {
		if composite, ok := p.(*AggregateCompositeProducer); ok {
			for _, g := range composite.Gauges() {
				b.collectors = append(b.collectors, g)
			}
		} else {
			b.collectors = append(b.collectors, p)
		}
	}
	return b
}

// IsEmpty reports whether the open bucket has received any document yet.
func (b *BucketBuilder) IsEmpty() bool {
	return !b.isOpen || b.docCount.Empty()
}

func (b *BucketBuilder) CurrentTSID() TSID          { return b.tsid }
func (b *BucketBuilder) CurrentTSIDOrd() int         { return b.tsidOrd }
func (b *BucketBuilder) CurrentBucketStartMs() int64 { return b.bucketStartMs }

// ResetSeries begins a new bucket for a new series, deep-copying tsid so
// the builder owns it independent of whatever buffer the iterator reuses.
func (b *BucketBuilder) ResetSeries(tsid TSID, tsidOrd int, bucketStartMs int64, dimensions []Dimension) {
	b.resetProducers()
	b.tsid = tsid.Clone()
	b.tsidOrd = tsidOrd
	b.bucketStartMs = bucketStartMs
	b.dimensions = dimensions
	b.isOpen = true
}

// ResetBucket starts a new bucket for the same series (tsid unchanged).
func (b *BucketBuilder) ResetBucket(bucketStartMs int64) {
	b.resetProducers()
	b.bucketStartMs = bucketStartMs
	b.isOpen = true
}

func (b *BucketBuilder) resetProducers() {
	b.docCount.Reset()
	for _, p := range b.producers {
		p.Reset()
	}
}

// CollectDocCount records n as the current document's `_doc_count`
// contribution (n <= 0 means "absent", defaulting to 1 per spec.md §3).
func (b *BucketBuilder) CollectDocCount(n int64) {
	b.docCount.Collect(DocValues{DocCount: n})
}

// CollectField delegates to the collector at positional index i with the
// given doc-values. Index i refers to BucketBuilder's flat collectors
// list, not the write-level producers list (the two diverge only when a
// composite groups several gauges under one output name).
func (b *BucketBuilder) CollectField(i int, doc DocValues) {
	b.collectors[i].Collect(doc)
}

// NumCollectors returns the length of the flat collectors list, the size
// the Collector should use when indexing leaf.FieldValues.
func (b *BucketBuilder) NumCollectors() int { return len(b.collectors) }

// Serialize emits the completed bucket as a Document. If IsEmpty, it
// returns (Document{}, false) and the caller must not enqueue it.
func (b *BucketBuilder) Serialize() (Document, bool) {
	if b.IsEmpty() {
		return Document{}, false
	}

	fields := models.Fields{}
	w := fieldsWriter{fields}
	for _, p := range b.producers {
		if p.Empty() {
			continue
		}
		p.Write(w)
	}

	tsid := b.tsid.Clone()
	doc := Document{
		ID:            EmittedDocID(tsid, b.bucketStartMs),
		TSID:          tsid,
		BucketStartMs: b.bucketStartMs,
		DocCount:      b.docCount.Total(),
		Dimensions:    append([]Dimension(nil), b.dimensions...),
		Fields:        fields,
	}
	return doc, true
}

// fieldsWriter adapts models.Fields to the fieldWriter interface producers
// write through.
type fieldsWriter struct {
	fields models.Fields
}

func (w fieldsWriter) setField(name string, value interface{}) {
	w.fields[name] = value
}
