package rollup

import (
	"context"
	"sort"
)

// DocTuple is one (series_id, series_ord, timestamp, doc_id) tuple yielded
// by a Leaf, per spec.md §4.4. DocID is a Lucene-segment-style internal
// document ID: unique within the leaf across all series, never reused.
type DocTuple struct {
	SeriesID  []byte
	SeriesOrd int
	TimeMs    int64
	DocID     int
}

// Leaf is one leaf context of the source shard: an ordered stream of
// DocTuples plus the doc-values/doc-count accessors the Collector needs to
// drive FieldProducers for whatever doc_id the stream currently points at.
// Field access is positional, matching BucketBuilder's flat collectors
// list (a composite's sub-gauges each take their own index).
type Leaf interface {
	// Next returns the next tuple, or ok == false when the leaf is
	// exhausted. It checks ctx at least once per call, per spec.md §4.4's
	// cancellation contract.
	Next(ctx context.Context) (tuple DocTuple, ok bool, err error)

	// FieldValues returns docID's doc-values for the field at collector
	// index i, or a DocValues with no values if the document has none.
	FieldValues(i int, docID int) DocValues

	// DocCount returns docID's `_doc_count` contribution, or 0 if absent
	// (the DocCountProducer treats <= 0 as "default to 1").
	DocCount(docID int) int64
}

// OrderedDocIterator is the external contract spec.md §4.4 assumes: an
// abstract ordered-document stream over one shard, honoring an inclusive
// resume predicate (tsid >= resume) and polling ctx for cancellation at
// least once per leaf.
type OrderedDocIterator interface {
	ForEachLeaf(ctx context.Context, resume []byte, fn func(leaf Leaf) error) error
}

// MemoryDoc is one fixture document for MemoryIterator.
type MemoryDoc struct {
	DocTuple
	// Values[i] is the doc-values for collector index i.
	Values   []DocValues
	DocCount int64
}

// MemoryIterator is an in-memory OrderedDocIterator over a fixed set of
// documents, grouped into leaves. It exists for tests and for the CLI demo
// (cmd/shard-downsampler) -- the real iterator is always the external
// shard searcher, out of scope per spec.md §1.
type MemoryIterator struct {
	Leaves [][]MemoryDoc
}

// ForEachLeaf implements OrderedDocIterator. Each leaf's documents are
// filtered to those with SeriesID >= resume (when resume is non-nil); the
// fixture builder is responsible for supplying documents already sorted
// per SortMemoryDocs.
func (m *MemoryIterator) ForEachLeaf(ctx context.Context, resume []byte, fn func(leaf Leaf) error) error {
	for _, leaf := range m.Leaves {
		if err := ctx.Err(); err != nil {
			return err
		}
		docs := leaf
		if resume != nil {
			docs = filterResume(leaf, resume)
		}
		if len(docs) == 0 {
			continue
		}
		if err := fn(&memoryLeaf{docs: docs}); err != nil {
			return err
		}
	}
	return nil
}

func filterResume(docs []MemoryDoc, resume []byte) []MemoryDoc {
	out := docs[:0:0]
	for _, d := range docs {
		if TSID(d.SeriesID).Compare(TSID(resume)) >= 0 {
			out = append(out, d)
		}
	}
	return out
}

type memoryLeaf struct {
	docs []MemoryDoc
	pos  int
}

func (l *memoryLeaf) Next(ctx context.Context) (DocTuple, bool, error) {
	if err := ctx.Err(); err != nil {
		return DocTuple{}, false, err
	}
	if l.pos >= len(l.docs) {
		return DocTuple{}, false, nil
	}
	d := l.docs[l.pos]
	l.pos++
	return d.DocTuple, true, nil
}

func (l *memoryLeaf) FieldValues(i int, docID int) DocValues {
	for _, d := range l.docs {
		if d.DocID == docID {
			if i < len(d.Values) {
				return d.Values[i]
			}
			return DocValues{}
		}
	}
	return DocValues{}
}

func (l *memoryLeaf) DocCount(docID int) int64 {
	for _, d := range l.docs {
		if d.DocID == docID {
			return d.DocCount
		}
	}
	return 0
}

// SortMemoryDocs sorts docs in place by series ascending, then timestamp
// descending within series -- the order OrderedDocIterator must deliver.
func SortMemoryDocs(docs []MemoryDoc) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := TSID(docs[i].SeriesID).Compare(TSID(docs[j].SeriesID))
		if c != 0 {
			return c < 0
		}
		return docs[i].TimeMs > docs[j].TimeMs
	})
}
