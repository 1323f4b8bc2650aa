// Command shard-downsampler runs a one-shot demo downsample over an
// in-memory fixture shard, printing the resulting bucket documents. It
// exists to exercise ShardDriver end to end without a real shard searcher
// or bulk index client wired in.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	rollup "github.com/Kiriakos1998/shard-downsampler"
)

var (
	flagInterval string
	flagTimeZone string
	flagShardID  uint64
	flagVerbose  bool
)

func init() {
	RootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringVar(&flagInterval, "interval", "1h", "fixed downsample interval (e.g. 5m, 1h)")
	RunCmd.Flags().StringVar(&flagTimeZone, "timezone", "UTC", "IANA time zone name for bucket boundaries")
	RunCmd.Flags().Uint64Var(&flagShardID, "shard-id", 1, "demo shard ID")
	RunCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// RootCmd is the main command for the shard-downsampler binary.
var RootCmd = &cobra.Command{
	Use:   "shard-downsampler",
	Short: "streaming per-shard time-series downsample demo",
	Long:  "shard-downsampler runs the downsample engine over a fixture shard and prints the resulting documents.",
	Run: func(cmd *cobra.Command, args []string) {
		// nolint:errcheck
		cmd.Usage()
	},
}

// RunCmd is the cobra command that runs the demo downsample.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "run the demo downsample over a built-in fixture shard",
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "shard-downsampler: %v\n", err)
			os.Exit(1)
		}
	},
}

func run() error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to construct logger: %w", err)
	}
	defer logger.Sync()

	tz, err := rollup.NewTimeZone(flagTimeZone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", flagTimeZone, err)
	}

	config := rollup.DownsampleConfig{
		IntervalKind:   rollup.FixedInterval,
		FixedInterval:  flagInterval,
		TimeZone:       tz,
		TimestampField: "timestamp",
	}

	fields := rollup.FieldLists{
		Metrics: []rollup.MetricField{
			{Name: "cpu.usage", Type: rollup.MetricGauge},
			{Name: "requests.total", Type: rollup.MetricCounter},
		},
		Labels: []rollup.LabelField{
			{Name: "host.status"},
		},
	}

	iterator, err := buildFixtureIterator()
	if err != nil {
		return err
	}

	indexer := &printingIndexer{logger: logger}
	sink := rollup.NewBulkSink(indexer, rollup.BulkSinkConfig{}, nil, logger)

	params := rollup.ShardTaskParams{
		TargetIndex:       "demo-downsampled",
		ShardID:           flagShardID,
		TimeSeriesStartMs: 0,
		TimeSeriesEndMs:   time.Now().UnixMilli(),
	}

	driver := rollup.NewShardDriver(params, config, fields, decodeDemoTSID, iterator, sink)
	driver.WithLogger(logger)

	report := driver.Run(context.Background(), nil)
	fmt.Printf("shard %d finished with status %s\n", report.ShardID, report.Status)
	if report.Err != nil {
		return report.Err
	}
	fmt.Printf("docs processed: %d, buckets sent: %d, buckets indexed: %d\n",
		report.Progress.DocsProcessed, report.Progress.NumSent, report.Progress.NumIndexed)
	return nil
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// printingIndexer is a BulkIndexer that prints every document it is handed
// and reports unconditional success, standing in for the real bulk index
// client (out of scope per spec.md §1).
type printingIndexer struct {
	logger *zap.Logger
}

func (p *printingIndexer) Flush(ctx context.Context, docs []rollup.Document) ([]bool, error) {
	failed := make([]bool, len(docs))
	for _, doc := range docs {
		p.logger.Info("indexed bucket",
			zap.Int64("bucket_start_ms", doc.BucketStartMs),
			zap.Int64("doc_count", doc.DocCount),
			zap.Any("fields", doc.Fields),
		)
	}
	return failed, nil
}

// decodeDemoTSID decodes the fixture's tsid encoding, "key=value,key=value",
// into output dimensions. The real decoder resolves a tsid against the
// source shard's series index, out of scope for this package.
func decodeDemoTSID(tsid rollup.TSID) ([]rollup.Dimension, error) {
	parts := strings.Split(string(tsid), ",")
	dims := make([]rollup.Dimension, 0, len(parts))
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		dims = append(dims, rollup.Dimension{Name: kv[0], Value: kv[1]})
	}
	return dims, nil
}

func buildFixtureIterator() (*rollup.MemoryIterator, error) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	hour := int64(time.Hour / time.Millisecond)

	seriesA := []byte("host=web-1,region=us-east")
	seriesB := []byte("host=web-2,region=us-east")

	// DocID is unique per leaf (a Lucene-segment-style internal doc ID),
	// never reused across series within the same leaf.
	docs := []rollup.MemoryDoc{
		{
			DocTuple: rollup.DocTuple{SeriesID: seriesA, SeriesOrd: 0, TimeMs: base + hour + 1000, DocID: 0},
			Values: []rollup.DocValues{
				{Values: []interface{}{92.5}},
				{Values: []interface{}{int64(14)}},
				{Values: []interface{}{"healthy"}},
			},
			DocCount: 1,
		},
		{
			DocTuple: rollup.DocTuple{SeriesID: seriesA, SeriesOrd: 0, TimeMs: base + hour, DocID: 1},
			Values: []rollup.DocValues{
				{Values: []interface{}{88.0}},
				{Values: []interface{}{int64(12)}},
				{Values: []interface{}{"healthy"}},
			},
			DocCount: 1,
		},
		{
			DocTuple: rollup.DocTuple{SeriesID: seriesA, SeriesOrd: 0, TimeMs: base, DocID: 2},
			Values: []rollup.DocValues{
				{Values: []interface{}{75.0}},
				{Values: []interface{}{int64(5)}},
				{Values: []interface{}{"degraded"}},
			},
			DocCount: 1,
		},
		{
			DocTuple: rollup.DocTuple{SeriesID: seriesB, SeriesOrd: 1, TimeMs: base + 500, DocID: 3},
			Values: []rollup.DocValues{
				{Values: []interface{}{10.0}},
				{Values: []interface{}{int64(1)}},
				{Values: []interface{}{"healthy"}},
			},
			DocCount: 1,
		},
	}
	rollup.SortMemoryDocs(docs)

	return &rollup.MemoryIterator{Leaves: [][]rollup.MemoryDoc{docs}}, nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
