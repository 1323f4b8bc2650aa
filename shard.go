package rollup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/influxdata/influxdb/models"
	"go.uber.org/zap"
)

// ShardStatus is the lifecycle state of one shard's downsample task, per
// spec.md §6.3.
type ShardStatus int32

const (
	StatusInitializing ShardStatus = iota
	StatusStarted
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s ShardStatus) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusStarted:
		return "started"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ShardReport is the final outcome of one ShardDriver.Run, per spec.md
// §6.3's status-record fields.
type ShardReport struct {
	ShardID  uint64
	Status   ShardStatus
	Err      error
	Progress Progress
}

// ShardDriver sequences one shard's downsample task end to end: resolve the
// resume point, run the Collector over the shard's OrderedDocIterator,
// drain the BulkSink, and record the terminal status. It mirrors the
// teacher's Shard in spirit -- a single mutex-guarded lifecycle object with
// a base/derived logger pair and a Statistics() accessor -- generalized
// from "one InfluxDB shard" to "one downsample task over one shard".
type ShardDriver struct {
	params ShardTaskParams
	config DownsampleConfig
	fields FieldLists
	decode DimensionDecoder

	iterator OrderedDocIterator
	sink     *BulkSink
	progress *Progress
	state    *TaskStateRecord

	baseLogger *zap.Logger
	logger     *zap.Logger

	mu     sync.Mutex
	status ShardStatus
	err    error

	cancel context.CancelFunc
}

// NewShardDriver constructs a ShardDriver. decode resolves a tsid to its
// output dimensions; it is typically backed by the source shard's series
// index, out of scope for this package per spec.md §1.
func NewShardDriver(params ShardTaskParams, config DownsampleConfig, fields FieldLists, decode DimensionDecoder, it OrderedDocIterator, sink *BulkSink) *ShardDriver {
	return &ShardDriver{
		params:     params,
		config:     config,
		fields:     fields,
		decode:     decode,
		iterator:   it,
		sink:       sink,
		progress:   sink.progress,
		state:      NewTaskStateRecord(params.ShardID),
		baseLogger: zap.NewNop(),
		logger:     zap.NewNop(),
		status:     StatusInitializing,
	}
}

// State returns the driver's TaskStateRecord, which a caller should
// persist after Run returns so a subsequent retry can resume from
// State().LastCompletedID() on CANCELLED or FAILED.
func (d *ShardDriver) State() *TaskStateRecord { return d.state }

// WithLogger sets the base logger the driver and the Collector it
// constructs will log through.
func (d *ShardDriver) WithLogger(log *zap.Logger) {
	d.baseLogger = log
	d.logger = log.With(zap.String("service", "shard_driver"), zap.Uint64("shard_id", d.params.ShardID))
}

// Status returns the driver's current lifecycle status.
func (d *ShardDriver) Status() ShardStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *ShardDriver) setStatus(s ShardStatus) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// Cancel requests cooperative cancellation of a running task. It is a
// no-op if the task has not started or has already reached a terminal
// status.
func (d *ShardDriver) Cancel() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the task to completion, transitioning status
// INITIALIZING -> STARTED -> {COMPLETED | CANCELLED | FAILED}, per spec.md
// §6.3. resume is the tsid to resume at (spec.md §8 scenario S6), or nil to
// start from the beginning of the shard.
func (d *ShardDriver) Run(ctx context.Context, resume []byte) ShardReport {
	if d.Status() != StatusInitializing {
		return d.report(NewShardError(d.params.ShardID, fmt.Errorf("downsample: Run called in status %s, a driver runs only once", d.Status())))
	}
	if resume == nil {
		resume = d.state.LastCompletedID()
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	d.setStatus(StatusStarted)
	d.state.Update(StatusStarted, nil)
	d.logger.Info("shard downsample started", zap.Binary("resume", resume))

	rounding, err := d.config.Rounding()
	if err != nil {
		return d.finish(StatusFailed, NewShardError(d.params.ShardID, err))
	}

	builder := buildBucketBuilder(d.fields)
	collector := NewCollector(builder, rounding, d.decode, d.sink, d.progress, d.params.TimeSeriesStartMs, d.baseLogger)

	runErr := collector.Run(runCtx, d.iterator, resume)
	if runErr == nil {
		runErr = d.sink.Close(runCtx)
	}
	if runErr == nil {
		runErr = d.verifyClean()
	}

	status := classifyOutcome(runErr)
	if runErr != nil {
		d.logger.Error("shard downsample ended with error", zap.Error(runErr), zap.String("status", status.String()))
	} else {
		d.logger.Info("shard downsample completed", zap.Int64("docs_processed", atomic.LoadInt64(&d.progress.DocsProcessed)))
	}
	d.state.Update(status, collector.LastFlushedTSID())
	return d.finish(status, NewShardError(d.params.ShardID, runErr))
}

// verifyClean checks spec.md §4.7's post-drain invariant: a run with no
// reported error must still have indexed everything it sent, with no
// item-level failures left uncounted. A mismatch here means the sink
// acknowledged fewer documents than it enqueued without raising, which is
// itself a bug worth failing loudly on rather than reporting COMPLETED.
func (d *ShardDriver) verifyClean() error {
	p := d.progress.snapshot()
	if p.NumFailed > 0 {
		return &BulkIndexingError{Retryable: false, Err: fmt.Errorf("%d document(s) failed indexing", p.NumFailed)}
	}
	if p.NumIndexed != p.NumSent {
		return &BulkIndexingError{Retryable: false, Err: fmt.Errorf("indexed_count %d != sent_count %d", p.NumIndexed, p.NumSent)}
	}
	return nil
}

func classifyOutcome(err error) ShardStatus {
	if err == nil {
		return StatusCompleted
	}
	if _, ok := err.(*CancelledError); ok {
		return StatusCancelled
	}
	return StatusFailed
}

func (d *ShardDriver) finish(status ShardStatus, err error) ShardReport {
	d.mu.Lock()
	d.status = status
	d.err = err
	d.mu.Unlock()
	return d.report(err)
}

func (d *ShardDriver) report(err error) ShardReport {
	return ShardReport{
		ShardID:  d.params.ShardID,
		Status:   d.Status(),
		Err:      err,
		Progress: d.progress.snapshot(),
	}
}

// Statistics returns the driver's progress counters in the teacher's
// models.Statistic shape, suitable for a monitoring sink keyed the same
// way a real InfluxDB Shard reports its write/disk stats.
func (d *ShardDriver) Statistics(tags map[string]string) []models.Statistic {
	p := d.progress.snapshot()
	defaultTags := models.StatisticTags{"shard_id": itoa(d.params.ShardID), "status": d.Status().String()}
	return []models.Statistic{{
		Name: "downsample_shard",
		Tags: defaultTags.Merge(tags),
		Values: map[string]interface{}{
			"numReceived":   p.NumReceived,
			"numSent":       p.NumSent,
			"numIndexed":    p.NumIndexed,
			"numFailed":     p.NumFailed,
			"docsProcessed": p.DocsProcessed,
			"lastSourceTs":  p.LastSourceTs,
			"lastTargetTs":  p.LastTargetTs,
			"lastIndexTs":   p.LastIndexTs,
		},
	}}
}

func itoa(v uint64) string {
	const digits = "0123456789"
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v%10]
		v /= 10
	}
	return string(buf[i:])
}

// buildBucketBuilder constructs the FieldProducer set a BucketBuilder needs
// from the configured field lists, per spec.md §4.2/§4.3.
func buildBucketBuilder(fields FieldLists) *BucketBuilder {
	producers := make([]FieldProducer, 0, len(fields.Metrics)+len(fields.Labels))
	for _, m := range fields.Metrics {
		switch m.Type {
		case MetricCounter:
			producers = append(producers, NewCounterProducer(m.Name))
		case MetricGauge:
			// A single GaugeProducer already tracks min/max/sum/value_count
			// from its one scalar input stream and Write emits all four;
			// m.Aggregations is not consulted and never implies more than
			// one producer. AggregateCompositeProducer is for the separate
			// case of a source field that already arrives pre-aggregated
			// under several sub-keys (spec.md §4.3), not represented here.
			producers = append(producers, NewGaugeProducer(m.Name))
		}
	}
	for _, l := range fields.Labels {
		producers = append(producers, NewLabelProducer(l.Name))
	}
	return NewBucketBuilder(producers)
}
