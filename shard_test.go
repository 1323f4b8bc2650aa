package rollup

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func testFieldLists() FieldLists {
	return FieldLists{
		Metrics: []MetricField{
			{Name: "cpu.usage", Type: MetricGauge},
			{Name: "requests.total", Type: MetricCounter},
		},
	}
}

func testConfig() DownsampleConfig {
	return DownsampleConfig{
		IntervalKind:  FixedInterval,
		FixedInterval: "1h",
	}
}

func newTestShardDriver(t *testing.T, it OrderedDocIterator, indexer BulkIndexer) *ShardDriver {
	t.Helper()
	sink := NewBulkSink(indexer, BulkSinkConfig{}, nil, zap.NewNop())
	params := ShardTaskParams{TargetIndex: "metrics-rollup", ShardID: 7}
	d := NewShardDriver(params, testConfig(), testFieldLists(), noopDecode, it, sink)
	d.WithLogger(zap.NewNop())
	return d
}

func TestShardDriverRunsToCompletion(t *testing.T) {
	hour := int64(3600000)
	docs := []MemoryDoc{
		{DocTuple: DocTuple{SeriesID: []byte("a"), SeriesOrd: 0, TimeMs: hour, DocID: 0},
			Values: []DocValues{{Values: []interface{}{1.0}}, {Values: []interface{}{int64(5)}}}, DocCount: 1},
		{DocTuple: DocTuple{SeriesID: []byte("b"), SeriesOrd: 1, TimeMs: hour, DocID: 1},
			Values: []DocValues{{Values: []interface{}{2.0}}, {Values: []interface{}{int64(6)}}}, DocCount: 1},
	}
	it := &MemoryIterator{Leaves: [][]MemoryDoc{docs}}
	indexer := &recordingIndexer{}
	driver := newTestShardDriver(t, it, indexer)

	report := driver.Run(context.Background(), nil)

	if report.Status != StatusCompleted {
		t.Fatalf("Status = %v, want StatusCompleted (err=%v)", report.Status, report.Err)
	}
	if report.Progress.DocsProcessed != 2 {
		t.Errorf("DocsProcessed = %d, want 2", report.Progress.DocsProcessed)
	}
	if report.Progress.NumIndexed != 2 {
		t.Errorf("NumIndexed = %d, want 2", report.Progress.NumIndexed)
	}
	if driver.State().Status() != StatusCompleted {
		t.Errorf("State().Status() = %v, want StatusCompleted", driver.State().Status())
	}
}

func TestShardDriverRejectsReRun(t *testing.T) {
	it := &MemoryIterator{Leaves: nil}
	driver := newTestShardDriver(t, it, &recordingIndexer{})

	driver.Run(context.Background(), nil)
	second := driver.Run(context.Background(), nil)
	if second.Err == nil {
		t.Fatal("expected an error re-running a driver that already left INITIALIZING")
	}
}

func TestShardDriverFailsOnIteratorError(t *testing.T) {
	docs := []MemoryDoc{
		{DocTuple: DocTuple{SeriesID: []byte("b"), SeriesOrd: 0, TimeMs: 0, DocID: 0}, Values: make([]DocValues, 2), DocCount: 1},
		{DocTuple: DocTuple{SeriesID: []byte("a"), SeriesOrd: 1, TimeMs: 0, DocID: 1}, Values: make([]DocValues, 2), DocCount: 1},
	}
	it := &MemoryIterator{Leaves: [][]MemoryDoc{docs}}
	driver := newTestShardDriver(t, it, &recordingIndexer{})

	report := driver.Run(context.Background(), nil)
	if report.Status != StatusFailed {
		t.Fatalf("Status = %v, want StatusFailed", report.Status)
	}
	if report.Err == nil {
		t.Fatal("expected a non-nil Err on a failed run")
	}
}

func TestShardDriverFailsOnItemLevelFailure(t *testing.T) {
	docs := []MemoryDoc{
		{DocTuple: DocTuple{SeriesID: []byte("a"), SeriesOrd: 0, TimeMs: 0, DocID: 0}, Values: make([]DocValues, 2), DocCount: 1},
	}
	it := &MemoryIterator{Leaves: [][]MemoryDoc{docs}}
	indexer := &recordingIndexer{
		script: []func([]Document) ([]bool, error){
			func(d []Document) ([]bool, error) { return []bool{true}, nil },
		},
	}
	driver := newTestShardDriver(t, it, indexer)

	report := driver.Run(context.Background(), nil)
	if report.Status != StatusFailed {
		t.Fatalf("Status = %v, want StatusFailed for an acknowledged batch with an item-level failure", report.Status)
	}
	if report.Err == nil {
		t.Fatal("expected a non-nil Err")
	}
}

func TestShardDriverResumesFromPersistedState(t *testing.T) {
	hour := int64(3600000)
	docs := []MemoryDoc{
		{DocTuple: DocTuple{SeriesID: []byte("a"), SeriesOrd: 0, TimeMs: hour, DocID: 0},
			Values: []DocValues{{Values: []interface{}{1.0}}, {Values: []interface{}{int64(5)}}}, DocCount: 1},
		{DocTuple: DocTuple{SeriesID: []byte("b"), SeriesOrd: 1, TimeMs: hour, DocID: 1},
			Values: []DocValues{{Values: []interface{}{2.0}}, {Values: []interface{}{int64(6)}}}, DocCount: 1},
	}
	it := &MemoryIterator{Leaves: [][]MemoryDoc{docs}}
	indexer := &recordingIndexer{}
	driver := newTestShardDriver(t, it, indexer)
	driver.State().Update(StatusFailed, []byte("b"))

	report := driver.Run(context.Background(), nil)

	if report.Status != StatusCompleted {
		t.Fatalf("Status = %v, want StatusCompleted", report.Status)
	}
	if report.Progress.DocsProcessed != 1 {
		t.Errorf("DocsProcessed = %d, want 1 (only series b should have run)", report.Progress.DocsProcessed)
	}
}

func TestTaskStateRecordMarshalRoundTrip(t *testing.T) {
	r := NewTaskStateRecord(42)
	r.Update(StatusFailed, []byte("zz"))

	buf, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error: %v", err)
	}

	got := NewTaskStateRecord(0)
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary() error: %v", err)
	}
	if got.Status() != StatusFailed {
		t.Errorf("Status() = %v, want StatusFailed", got.Status())
	}
	if string(got.LastCompletedID()) != "zz" {
		t.Errorf("LastCompletedID() = %q, want %q", got.LastCompletedID(), "zz")
	}
}
