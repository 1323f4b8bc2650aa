package rollup

import (
	"context"
	"fmt"

	"github.com/influxdata/influxdb/pkg/estimator/hll"
	"go.uber.org/zap"
)

// DimensionDecoder decodes a tsid's series key into the dimension
// name/value pairs that become top-level fields on the emitted document.
type DimensionDecoder func(tsid TSID) ([]Dimension, error)

// sinkEnqueuer is the subset of BulkSink the Collector depends on, kept as
// an interface so Collector can be tested without a real sink.
type sinkEnqueuer interface {
	Enqueue(ctx context.Context, doc Document) bool
	Aborted() bool
}

// Collector drives an OrderedDocIterator, detects bucket boundaries,
// flushes BucketBuilder, enforces the ordering invariant, and reports
// progress. It owns all mutable collection state; FieldProducers are
// borrowed from the BucketBuilder and never leak beyond it (spec.md §3,
// "Lifecycle").
type Collector struct {
	builder  *BucketBuilder
	rounding Rounding
	decode   DimensionDecoder
	sink     sinkEnqueuer
	progress *Progress
	logger   *zap.Logger

	indexStartMs int64

	lastHistoTimestamp int64
	haveLastHisto      bool

	seriesSketch *hll.Plus // supplemental: approximate distinct-tsid count, diagnostics only

	lastFlushedTSID TSID
}

// NewCollector constructs a Collector. indexStartMs is the shard's
// time_series_start_ms (spec.md §3 invariant 3's floor).
func NewCollector(builder *BucketBuilder, rounding Rounding, decode DimensionDecoder, sink sinkEnqueuer, progress *Progress, indexStartMs int64, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	sketch, _ := hll.NewPlus(16)
	return &Collector{
		builder:      builder,
		rounding:     rounding,
		decode:       decode,
		sink:         sink,
		progress:     progress,
		logger:       logger.With(zap.String("service", "collector")),
		indexStartMs: indexStartMs,
		seriesSketch: sketch,
	}
}

// Run drives it to exhaustion, enqueuing one Document per completed
// bucket into the sink. It returns ErrOrderingViolation if the iterator
// violates spec.md §3 invariant 1, a *CancelledError if ctx is cancelled,
// a *BulkIndexingError if the sink aborts, or nil on clean completion
// (after flushing any still-open final bucket).
func (c *Collector) Run(ctx context.Context, it OrderedDocIterator, resume []byte) error {
	var lastTSID TSID
	var lastTimeMs int64
	haveLast := false

	err := it.ForEachLeaf(ctx, resume, func(leaf Leaf) error {
		if err := c.checkCancelled(ctx); err != nil {
			return err
		}
		for {
			tuple, ok, err := leaf.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			tsid := TSID(tuple.SeriesID)
			seriesChanged := !haveLast || c.builder.CurrentTSIDOrd() != tuple.SeriesOrd || !tsid.Equal(c.builder.CurrentTSID())

			if err := c.assertOrdering(seriesChanged, lastTSID, tsid, lastTimeMs, tuple.TimeMs); err != nil {
				return err
			}
			lastTSID, lastTimeMs, haveLast = tsid, tuple.TimeMs, true

			candidateBucket := maxInt64(c.rounding.RoundDown(tuple.TimeMs), c.indexStartMs)
			if seriesChanged || tuple.TimeMs < c.lastHistoTimestamp || !c.haveLastHisto {
				c.lastHistoTimestamp = candidateBucket
				c.haveLastHisto = true
			}

			if seriesChanged || c.builder.CurrentBucketStartMs() != c.lastHistoTimestamp {
				if err := c.flushIfNonEmpty(ctx); err != nil {
					return err
				}
				if seriesChanged {
					dims, err := c.decode(tsid)
					if err != nil {
						return err
					}
					c.builder.ResetSeries(tsid, tuple.SeriesOrd, c.lastHistoTimestamp, dims)
					c.seriesSketch.Add(hashTSID(tsid))
				} else {
					c.builder.ResetBucket(c.lastHistoTimestamp)
				}
			}

			c.collectDoc(leaf, tuple)
			c.progress.addReceived(1)
			c.progress.addProcessed(1)
			c.progress.setLastSourceTs(tuple.TimeMs)

			if err := c.checkCancelled(ctx); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return err
	}

	if err := c.flushIfNonEmpty(ctx); err != nil {
		return err
	}
	return c.checkCancelled(ctx)
}

func (c *Collector) collectDoc(leaf Leaf, tuple DocTuple) {
	c.builder.CollectDocCount(leaf.DocCount(tuple.DocID))
	for i := 0; i < c.builder.NumCollectors(); i++ {
		c.builder.CollectField(i, leaf.FieldValues(i, tuple.DocID))
	}
}

// assertOrdering enforces spec.md §3 invariant 1: tsid non-decreasing
// overall, and within an unchanged tsid, timestamp non-increasing.
func (c *Collector) assertOrdering(seriesChanged bool, last, cur TSID, lastTimeMs, curTimeMs int64) error {
	if !seriesChanged {
		if curTimeMs > lastTimeMs {
			c.logger.Error("ordering violation", zap.Binary("tsid", cur),
				zap.Int64("last_time_ms", lastTimeMs), zap.Int64("time_ms", curTimeMs))
			return fmt.Errorf("%w: timestamp increased within series", ErrOrderingViolation)
		}
		return nil
	}
	if last == nil {
		return nil
	}
	if cur.Compare(last) < 0 {
		c.logger.Error("ordering violation", zap.Binary("last_tsid", last), zap.Binary("tsid", cur))
		return fmt.Errorf("%w: tsid went backwards", ErrOrderingViolation)
	}
	return nil
}

func (c *Collector) flushIfNonEmpty(ctx context.Context) error {
	doc, ok := c.builder.Serialize()
	if !ok {
		return nil
	}
	c.progress.addSent(1)
	c.progress.setLastTargetTs(doc.BucketStartMs)
	c.lastFlushedTSID = doc.TSID
	if !c.sink.Enqueue(ctx, doc) {
		if err := c.checkCancelled(ctx); err != nil {
			return err
		}
		return &CancelledError{Reason: "bulk sink rejected enqueue"}
	}
	return c.checkCancelled(ctx)
}

// LastFlushedTSID returns the tsid of the most recently flushed bucket, the
// resume point a caller should persist alongside a terminal status
// (spec.md §3's "Task state record").
func (c *Collector) LastFlushedTSID() TSID { return c.lastFlushedTSID }

// checkCancelled is invoked from the iterator's polling hook and from
// pre/post-collection points, per spec.md §4.7's cancellation paths.
func (c *Collector) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &CancelledError{Reason: err.Error()}
	}
	if c.sink.Aborted() {
		return &BulkIndexingError{Retryable: false, Err: fmt.Errorf("sink aborted after item failures")}
	}
	return nil
}

// ApproxSeriesCount returns the HyperLogLog++ cardinality estimate of
// distinct tsids seen so far (supplemental diagnostic, never used for
// correctness -- see SPEC_FULL.md §3).
func (c *Collector) ApproxSeriesCount() uint64 {
	return c.seriesSketch.Count()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func hashTSID(tsid TSID) []byte {
	// hll.Plus.Add hashes its input itself; tsid's own bytes are already
	// a fine hash key.
	return tsid
}
