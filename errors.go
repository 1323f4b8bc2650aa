package rollup

import "fmt"

var (
	// ErrMissingField is returned when a configured metric or label field
	// has no mapping on the source shard. Surfaced before collection begins.
	ErrMissingField = fmt.Errorf("downsample: field not found on shard")

	// ErrMappingMismatch is returned when a configured field's declared
	// type conflicts with the type observed on the shard.
	ErrMappingMismatch = fmt.Errorf("downsample: field mapping mismatch")

	// ErrOrderingViolation indicates the document iterator produced a
	// tuple out of the required (tsid asc, timestamp desc) order. This is
	// a programmer error in the iterator; the engine does not attempt to
	// recover.
	ErrOrderingViolation = fmt.Errorf("downsample: ordering violation")
)

// ShardDownsampleError adds shard context to an underlying error, mirroring
// the teacher's ShardError.
type ShardDownsampleError struct {
	ShardID uint64
	Err     error
}

func (e *ShardDownsampleError) Error() string {
	return fmt.Sprintf("[shard %d] %s", e.ShardID, e.Err)
}

func (e *ShardDownsampleError) Unwrap() error { return e.Err }

// NewShardError wraps err with shard context. Returns nil if err is nil.
func NewShardError(shardID uint64, err error) error {
	if err == nil {
		return nil
	}
	return &ShardDownsampleError{ShardID: shardID, Err: err}
}

// CancelledError signals cooperative cancellation of a shard run.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string { return "downsample: cancelled: " + e.Reason }

// BulkIndexingError signals the sink aborted, either because of an
// unretryable transport failure or because an acknowledged batch reported
// item-level failures.
type BulkIndexingError struct {
	Retryable bool
	Err       error
}

func (e *BulkIndexingError) Error() string {
	return fmt.Sprintf("downsample: bulk indexing failed (retryable=%v): %s", e.Retryable, e.Err)
}

func (e *BulkIndexingError) Unwrap() error { return e.Err }
