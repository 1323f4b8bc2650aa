package rollup

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// recordingIndexer is a BulkIndexer whose Flush behavior is scripted per
// call via the script slice, for exercising retry and abort paths.
type recordingIndexer struct {
	mu      sync.Mutex
	batches [][]Document
	script  []func([]Document) ([]bool, error)
	calls   int
}

func (r *recordingIndexer) Flush(ctx context.Context, docs []Document) ([]bool, error) {
	r.mu.Lock()
	r.batches = append(r.batches, docs)
	i := r.calls
	r.calls++
	r.mu.Unlock()

	if i < len(r.script) {
		return r.script[i](docs)
	}
	return make([]bool, len(docs)), nil
}

func docWithTSID(id string, bucketMs int64) Document {
	return Document{TSID: TSID([]byte(id)), BucketStartMs: bucketMs, DocCount: 1}
}

func TestBulkSinkFlushesOnClose(t *testing.T) {
	indexer := &recordingIndexer{}
	progress := &Progress{}
	sink := NewBulkSink(indexer, BulkSinkConfig{}, progress, zap.NewNop())

	if !sink.Enqueue(context.Background(), docWithTSID("a", 0)) {
		t.Fatal("expected Enqueue to succeed")
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if len(indexer.batches) != 1 || len(indexer.batches[0]) != 1 {
		t.Fatalf("expected one batch of one document, got %v", indexer.batches)
	}
	if progress.NumIndexed != 1 {
		t.Errorf("NumIndexed = %d, want 1", progress.NumIndexed)
	}
}

func TestBulkSinkFlushesOnMaxActions(t *testing.T) {
	indexer := &recordingIndexer{}
	sink := NewBulkSink(indexer, BulkSinkConfig{MaxActions: 2}, nil, zap.NewNop())

	ctx := context.Background()
	sink.Enqueue(ctx, docWithTSID("a", 0))
	sink.Enqueue(ctx, docWithTSID("b", 0)) // reaches MaxActions and flushes the first two
	sink.Enqueue(ctx, docWithTSID("c", 0))

	sink.Close(ctx)

	if len(indexer.batches) != 2 {
		t.Fatalf("expected 2 batches (2+1), got %d: %v", len(indexer.batches), indexer.batches)
	}
	if len(indexer.batches[0]) != 2 {
		t.Errorf("first batch size = %d, want 2", len(indexer.batches[0]))
	}
}

func TestBulkSinkRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	indexer := &recordingIndexer{
		script: []func([]Document) ([]bool, error){
			func(docs []Document) ([]bool, error) {
				attempts++
				return nil, fmt.Errorf("transient failure")
			},
		},
	}
	progress := &Progress{}
	sink := NewBulkSink(indexer, BulkSinkConfig{MaxRetries: 2}, progress, zap.NewNop())

	ctx := context.Background()
	sink.Enqueue(ctx, docWithTSID("a", 0))
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if attempts != 1 {
		t.Errorf("expected the scripted failure to run once then succeed on retry, got %d scripted calls", attempts)
	}
	if sink.Aborted() {
		t.Fatal("expected sink not to abort after a successful retry")
	}
	if progress.NumIndexed != 1 {
		t.Errorf("NumIndexed = %d, want 1", progress.NumIndexed)
	}
}

func TestBulkSinkAbortsAfterExhaustingRetries(t *testing.T) {
	indexer := &recordingIndexer{
		script: []func([]Document) ([]bool, error){
			func(docs []Document) ([]bool, error) { return nil, fmt.Errorf("fail 1") },
			func(docs []Document) ([]bool, error) { return nil, fmt.Errorf("fail 2") },
			func(docs []Document) ([]bool, error) { return nil, fmt.Errorf("fail 3") },
		},
	}
	sink := NewBulkSink(indexer, BulkSinkConfig{MaxRetries: 2}, nil, zap.NewNop())

	ctx := context.Background()
	sink.Enqueue(ctx, docWithTSID("a", 0))
	err := sink.Close(ctx)
	if err == nil {
		t.Fatal("expected Close() to return the abort error")
	}
	if !sink.Aborted() {
		t.Fatal("expected sink to be aborted after exhausting retries")
	}
	if sink.Enqueue(ctx, docWithTSID("b", 0)) {
		t.Fatal("expected Enqueue to reject work once aborted")
	}
}

func TestBulkSinkPartialFailureAbortsImmediately(t *testing.T) {
	indexer := &recordingIndexer{
		script: []func([]Document) ([]bool, error){
			func(docs []Document) ([]bool, error) {
				failed := make([]bool, len(docs))
				failed[0] = true
				return failed, nil
			},
		},
	}
	progress := &Progress{}
	sink := NewBulkSink(indexer, BulkSinkConfig{MaxRetries: 2}, progress, zap.NewNop())

	ctx := context.Background()
	sink.Enqueue(ctx, docWithTSID("a", 0))
	sink.Enqueue(ctx, docWithTSID("b", 0))
	err := sink.Close(ctx)
	if err == nil {
		t.Fatal("expected Close() to return the abort error for an item-level failure")
	}
	if !sink.Aborted() {
		t.Fatal("expected sink to abort on an acknowledged batch with item-level failures, not retry the subset")
	}

	if len(indexer.batches) != 1 {
		t.Fatalf("expected no retry of the failed subset, got %d batches", len(indexer.batches))
	}
	if progress.NumFailed != 1 {
		t.Errorf("NumFailed = %d, want 1", progress.NumFailed)
	}
	if progress.NumIndexed != 1 {
		t.Errorf("NumIndexed = %d, want 1 (the non-failed item)", progress.NumIndexed)
	}
}
