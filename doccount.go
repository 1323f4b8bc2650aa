package rollup

// DocCountProducer sums per-document `_doc_count` contributions over the
// current bucket, defaulting each document's contribution to 1 when the
// source document carries no explicit _doc_count (spec.md §3).
type DocCountProducer struct {
	field string
	total int64
	seen  bool
}

const docCountFieldName = "_doc_count"

func NewDocCountProducer() *DocCountProducer {
	return &DocCountProducer{field: docCountFieldName}
}

func (d *DocCountProducer) Name() string { return d.field }

func (d *DocCountProducer) Empty() bool { return !d.seen }

func (d *DocCountProducer) Collect(doc DocValues) {
	n := doc.DocCount
	if n <= 0 {
		n = 1
	}
	d.total += n
	d.seen = true
}

func (d *DocCountProducer) Reset() {
	d.total = 0
	d.seen = false
}

func (d *DocCountProducer) Write(fields fieldWriter) {
	fields.setField(d.field, d.total)
}

// Total returns the running doc-count without writing it, used by
// BucketBuilder to populate Document.DocCount directly.
func (d *DocCountProducer) Total() int64 { return d.total }
