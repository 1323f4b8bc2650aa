package rollup

import (
	"bytes"

	"github.com/influxdata/influxdb/models"
	"github.com/influxdata/influxdb/pkg/bytesutil"
	"github.com/influxdata/influxdb/pkg/escape"
)

// TSID is an opaque byte sequence uniquely identifying a time series within
// a source shard. It is totally ordered by unsigned-lexicographic compare
// (see Compare), independent of any per-segment ordinal the iterator may
// assign it.
type TSID []byte

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than
// other, using the same unsigned-byte ordering as
// github.com/influxdata/influxdb/pkg/bytesutil's sort helpers.
func (t TSID) Compare(other TSID) int {
	return bytes.Compare(t, other)
}

// Equal reports whether t and other identify the same series. This is a
// plain byte compare; ordinal equality (cheaper, but only a fast-path
// accelerator) is handled by the caller, never as a substitute for this.
func (t TSID) Equal(other TSID) bool {
	return bytes.Equal(t, other)
}

// Clone returns an owned copy of t. The Collector must deep-copy a tsid on
// reset_series because the iterator is free to reuse the backing array of
// the bytes it hands back on the next call.
func (t TSID) Clone() TSID {
	if t == nil {
		return nil
	}
	dup := make(TSID, len(t))
	copy(dup, t)
	return dup
}

// SortTSIDs sorts a slice of tsids in place using the same unsigned
// lexicographic order as Compare. Used only by tests; the live collection
// path never needs to sort, since the
// iterator contract already guarantees ascending tsid order.
func SortTSIDs(ids [][]byte) {
	bytesutil.Sort(ids)
}

// Dimension is one decoded name/value pair from a tsid's tag set, destined
// to become a top-level field on the emitted rollup document.
type Dimension struct {
	Name  string
	Value string
}

// DecodeDimensions decodes the dimension name/value pairs carried by a
// tsid's series key, unescaping any line-protocol-style escaping the source
// index applied when it built the key (tag keys/values may contain
// characters -- commas, spaces, equals signs -- that must be escaped in the
// wire-level key but not in the output document).
func DecodeDimensions(tags models.Tags) []Dimension {
	dims := make([]Dimension, 0, len(tags))
	for _, tag := range tags {
		dims = append(dims, Dimension{
			Name:  escape.UnescapeString(string(tag.Key)),
			Value: escape.UnescapeString(string(tag.Value)),
		})
	}
	return dims
}
