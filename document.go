package rollup

import (
	"encoding/base64"
	"encoding/binary"
	"hash/fnv"

	"github.com/influxdata/influxdb/models"
)

// AggregateMetricValue is the {min,max,sum,value_count} composite spec.md
// §4.2/§6.2 requires for every emitted gauge field.
type AggregateMetricValue struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Sum        float64 `json:"sum"`
	ValueCount int64   `json:"value_count"`
}

// Document is the self-describing output of one completed bucket, per
// spec.md §6.2. It carries enough information for a caller to encode it in
// whatever wire format the target index expects (CBOR, JSON, ...); this
// package never encodes a Document itself, by design (§1: REST/transport
// plumbing is out of scope).
type Document struct {
	// ID is the deterministic identifier from EmittedDocID(TSID,
	// BucketStartMs), set by BucketBuilder.Serialize. A BulkIndexer writes a
	// document under this id so a replay of the same bucket overwrites
	// rather than duplicates it (spec.md §8 property 6, scenario S6).
	ID            string
	TSID          TSID
	BucketStartMs int64
	DocCount      int64
	Dimensions    []Dimension
	Fields        models.Fields // metric/label values, scalar or AggregateMetricValue
}

// EstimatedSize returns an approximate wire size in bytes, used by BulkSink
// to decide when to dispatch a batch. It does not need to be exact (the
// spec only requires the threshold be respected approximately), so it
// avoids a full encode on every enqueue by delegating to models.Fields'
// own binary codec, the cheapest accurate-ish estimate available without
// depending on the final wire encoder.
func (d *Document) EstimatedSize() int {
	size := len(d.TSID) + 16 // bucket timestamp + doc count
	for _, dim := range d.Dimensions {
		size += len(dim.Name) + len(dim.Value)
	}
	size += len(d.Fields.MarshalBinary())
	return size
}

// EmittedDocID derives the deterministic identifier spec.md's Glossary
// calls for, so that a replay (spec.md §8 property 6, scenario S6)
// overwrites rather than duplicates a document with the same (tsid,
// bucket_start_ms).
func EmittedDocID(tsid TSID, bucketStartMs int64) string {
	h := fnv.New64a()
	h.Write(tsid)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(bucketStartMs))
	h.Write(ts[:])
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
