package rollup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default BulkSink limits, per spec.md §6.1's bulk-sink defaults.
const (
	DefaultMaxActions        = 10000
	DefaultMaxBatchBytes     = 1 << 20  // 1MiB
	DefaultMaxInFlightBytes  = 50 << 20 // 50MiB
	DefaultMaxRetries        = 3
)

var (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BulkIndexer abstracts the target index client: hand a batch of Documents
// to Flush and get back per-item success/failure plus whether the failure
// class is retryable. The real implementation is an external HTTP bulk
// client, out of scope per spec.md §1; tests and the CLI demo supply a
// fake.
type BulkIndexer interface {
	// Flush submits docs and returns, for each index i, whether it
	// succeeded. err is non-nil only for a transport-level failure
	// (the whole batch should be retried or the sink aborted); item-level
	// failures are reported through failed instead.
	Flush(ctx context.Context, docs []Document) (failed []bool, err error)
}

// BulkSinkConfig holds BulkSink's tunables, per spec.md §6.1.
type BulkSinkConfig struct {
	MaxActions       int
	MaxBatchBytes    int
	MaxInFlightBytes int64
	MaxRetries       int

	OnBeforeBulk func(batchSize int)
	OnAfterBulk  func(batchSize int, failedCount int, err error)
}

func (c *BulkSinkConfig) setDefaults() {
	if c.MaxActions <= 0 {
		c.MaxActions = DefaultMaxActions
	}
	if c.MaxBatchBytes <= 0 {
		c.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if c.MaxInFlightBytes <= 0 {
		c.MaxInFlightBytes = DefaultMaxInFlightBytes
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// BulkSink buffers Documents into size/count-bounded batches, dispatches
// them to a BulkIndexer with retry and exponential backoff, and applies
// backpressure to callers of Enqueue when too many bytes are in flight.
// Once a batch exhausts its retries, the sink sticks in an aborted state:
// spec.md §6.3 requires a FAILED shard to stop cleanly rather than keep
// indexing into a target that is already behind.
type BulkSink struct {
	cfg      BulkSinkConfig
	indexer  BulkIndexer
	progress *Progress
	logger   *zap.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	pending     []Document
	pendingSize int
	inFlight    int64
	aborted     bool
	abortErr    error
	closed      bool
}

// NewBulkSink constructs a BulkSink. progress may be nil.
func NewBulkSink(indexer BulkIndexer, cfg BulkSinkConfig, progress *Progress, logger *zap.Logger) *BulkSink {
	cfg.setDefaults()
	if progress == nil {
		progress = &Progress{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BulkSink{
		cfg:      cfg,
		indexer:  indexer,
		progress: progress,
		logger:   logger.With(zap.String("service", "bulk_sink")),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue buffers doc, flushing the current batch first if adding doc
// would exceed MaxActions or MaxBatchBytes, and blocks (respecting ctx)
// while MaxInFlightBytes worth of batches are already in flight. It
// returns false if the sink is aborted or ctx is cancelled before the
// document could be accepted.
func (s *BulkSink) Enqueue(ctx context.Context, doc Document) bool {
	size := doc.EstimatedSize()

	s.mu.Lock()
	for s.inFlight+int64(size) > int64(s.cfg.MaxInFlightBytes) && !s.aborted {
		if ctx.Err() != nil {
			s.mu.Unlock()
			return false
		}
		s.waitOnCond(ctx)
	}
	if s.aborted {
		s.mu.Unlock()
		return false
	}

	if len(s.pending) > 0 && (len(s.pending)+1 > s.cfg.MaxActions || s.pendingSize+size > s.cfg.MaxBatchBytes) {
		batch := s.takeBatchLocked()
		s.mu.Unlock()
		s.flushBatch(ctx, batch)
		s.mu.Lock()
	}

	s.pending = append(s.pending, doc)
	s.pendingSize += size
	flushNow := len(s.pending) >= s.cfg.MaxActions || s.pendingSize >= s.cfg.MaxBatchBytes
	var batch []Document
	if flushNow {
		batch = s.takeBatchLocked()
	}
	s.mu.Unlock()

	if batch != nil {
		s.flushBatch(ctx, batch)
	}
	return true
}

// waitOnCond blocks on s.cond, but wakes up if ctx is done so Enqueue can
// re-check ctx.Err() without leaking a goroutine. s.mu must be held.
func (s *BulkSink) waitOnCond(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-done:
		}
	}()
	s.cond.Wait()
	close(done)
}

func (s *BulkSink) takeBatchLocked() []Document {
	batch := s.pending
	s.pending = nil
	s.pendingSize = 0
	return batch
}

// Close flushes any buffered, not-yet-full batch. Call once, after the
// source iterator is exhausted.
func (s *BulkSink) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	batch := s.takeBatchLocked()
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	s.flushBatch(ctx, batch)
	if s.Aborted() {
		return s.abortErrOrDefault()
	}
	return nil
}

// Aborted reports whether the sink has stopped accepting further work
// because a batch exhausted its retries, an acknowledged batch reported
// item-level failures, or ctx was cancelled during a retry backoff.
func (s *BulkSink) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *BulkSink) abortErrOrDefault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abortErr != nil {
		return s.abortErr
	}
	return &BulkIndexingError{Retryable: false, Err: context.Canceled}
}

func (s *BulkSink) flushBatch(ctx context.Context, batch []Document) {
	if len(batch) == 0 {
		return
	}
	size := int64(0)
	for _, d := range batch {
		size += int64(d.EstimatedSize())
	}

	s.mu.Lock()
	s.inFlight += size
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight -= size
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	if s.cfg.OnBeforeBulk != nil {
		s.cfg.OnBeforeBulk(len(batch))
	}

	backoff := initialBackoff
	var lastErr error
	var lastFailed []bool
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				s.abort(ctx.Err())
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		failed, err := s.indexer.Flush(ctx, batch)
		lastErr, lastFailed = err, failed
		if err == nil {
			// The batch was acknowledged by the indexer. Item-level failures
			// are not retried: only a transport-level error (err != nil,
			// below) is. An acknowledged batch reporting any failed item
			// aborts the sink immediately.
			failedCount := countTrue(failed)
			s.progress.addIndexed(int64(len(batch) - failedCount))
			s.progress.addFailed(int64(failedCount))
			if len(batch) > 0 {
				s.progress.setLastIndexTs(batch[len(batch)-1].BucketStartMs)
			}
			if s.cfg.OnAfterBulk != nil {
				s.cfg.OnAfterBulk(len(batch), failedCount, nil)
			}
			if failedCount == 0 {
				return
			}
			s.abort(&BulkIndexingError{Retryable: false, Err: fmt.Errorf("%d item(s) failed in acknowledged batch", failedCount)})
			return
		}
		s.logger.Warn("bulk flush failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}

	failedCount := len(batch)
	if lastFailed != nil {
		failedCount = countTrue(lastFailed)
	}
	s.progress.addFailed(int64(failedCount))
	if s.cfg.OnAfterBulk != nil {
		s.cfg.OnAfterBulk(len(batch), failedCount, lastErr)
	}
	s.abort(&BulkIndexingError{Retryable: false, Err: lastErr})
}

func (s *BulkSink) abort(err error) {
	s.mu.Lock()
	s.aborted = true
	if s.abortErr == nil {
		s.abortErr = err
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

