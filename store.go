package rollup

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrShardNotFound is returned when a Store operation names a shard ID the
// Store has no driver registered for.
var ErrShardNotFound = fmt.Errorf("downsample: shard not found")

// Store fans a single downsample task out across the several shards one
// target index is split over, running each shard's ShardDriver
// concurrently up to a caller-supplied limit. It does not change any
// per-shard semantics and does not recover a failed shard on another
// shard's behalf -- a failure is reported back to the caller, which
// matches spec.md's orchestrator-retries-the-shard model.
type Store struct {
	mu      sync.RWMutex
	drivers map[uint64]*ShardDriver

	Logger *zap.Logger
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		drivers: make(map[uint64]*ShardDriver),
		Logger:  zap.NewNop(),
	}
}

// AddShard registers a ShardDriver under its shard ID, wiring Store's
// logger into it. It is an error to register the same shard ID twice.
func (s *Store) AddShard(d *ShardDriver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drivers[d.params.ShardID]; ok {
		return fmt.Errorf("downsample: shard %d already registered", d.params.ShardID)
	}
	d.WithLogger(s.Logger)
	s.drivers[d.params.ShardID] = d
	return nil
}

// Shard returns the driver registered for id, or ErrShardNotFound.
func (s *Store) Shard(id uint64) (*ShardDriver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrShardNotFound
	}
	return d, nil
}

// ShardIDs returns the IDs of all registered shards, in no particular
// order.
func (s *Store) ShardIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.drivers))
	for id := range s.drivers {
		ids = append(ids, id)
	}
	return ids
}

// RunAll runs every registered shard's downsample task concurrently,
// bounded by concurrency (a value <= 0 means unbounded). resumeByShard
// optionally supplies a per-shard resume tsid. It returns once every shard
// has reached a terminal status, with one ShardReport per shard keyed by
// shard ID; a per-shard failure does not cancel its siblings.
func (s *Store) RunAll(ctx context.Context, concurrency int, resumeByShard map[uint64][]byte) map[uint64]ShardReport {
	s.mu.RLock()
	drivers := make([]*ShardDriver, 0, len(s.drivers))
	for _, d := range s.drivers {
		drivers = append(drivers, d)
	}
	s.mu.RUnlock()

	reports := make(map[uint64]ShardReport, len(drivers))
	var mu sync.Mutex

	sem := make(chan struct{}, concurrencyOrUnbounded(concurrency, len(drivers)))
	var wg sync.WaitGroup
	for _, d := range drivers {
		d := d
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			report := d.Run(ctx, resumeByShard[d.params.ShardID])
			mu.Lock()
			reports[d.params.ShardID] = report
			mu.Unlock()
		}()
	}
	wg.Wait()
	return reports
}

func concurrencyOrUnbounded(concurrency, total int) int {
	if concurrency <= 0 || concurrency > total {
		if total <= 0 {
			return 1
		}
		return total
	}
	return concurrency
}

// CancelAll requests cooperative cancellation of every registered shard's
// task that is currently running.
func (s *Store) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.drivers {
		d.Cancel()
	}
}
