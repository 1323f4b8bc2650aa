package rollup

// DocValues is the per-document, per-field input a FieldProducer consumes.
// The shard searcher (external, out of scope per spec.md §1) resolves a
// field name plus a doc id to this before calling Collect; Values holds one
// or more typed values (a field can be multi-valued, e.g. an array label).
type DocValues struct {
	Values []interface{}
	// DocCount is the `_doc_count` contribution of this document; the
	// doc-count producer reads it directly rather than through Values.
	DocCount int64
}

// HasValue reports whether the document actually carries a value for this
// field. A document with no value for a field is skipped and must not
// advance any running count (spec.md §4.2, "Missing values").
func (dv DocValues) HasValue() bool { return len(dv.Values) > 0 }

// FieldProducer is the capability interface spec.md §9 calls for in place
// of a virtual-dispatch hierarchy: one concrete type per variant
// (gauge/counter/label/doc-count/composite), all satisfying this interface.
type FieldProducer interface {
	// Collect appends doc's contribution to the currently open bucket.
	Collect(doc DocValues)

	// Reset discards accumulated state. Called at every bucket boundary,
	// after the bucket has been serialized.
	Reset()

	// Write appends this producer's serialized field fragment to fields,
	// under Name() (or, for a composite, under the shared group name).
	Write(fields fieldWriter)

	// Name is the output field name. Multiple Gauge producers may share a
	// name when grouped under an AggregateCompositeProducer.
	Name() string

	// Empty reports whether no value has been collected since the last
	// Reset (a Collect call carrying no value leaves it empty).
	// BucketBuilder.Serialize skips writing a field whose producer is empty.
	Empty() bool
}

// fieldWriter is the minimal surface BucketBuilder.serialize needs from its
// output map; kept as an interface so producers don't import the document
// type directly.
type fieldWriter interface {
	setField(name string, value interface{})
}
