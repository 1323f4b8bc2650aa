package rollup

import "sync/atomic"

// Progress holds the side-effect counters spec.md §6.2 requires the engine
// to maintain on the caller's task handle. All fields are updated with
// atomics so Collector (writer for the received/sent/processed counters
// and source/target timestamps) and BulkSink (writer for NumIndexed,
// NumFailed and LastIndexTs) can be read concurrently by a status
// poller without a lock, mirroring the teacher's ShardStatistics.
type Progress struct {
	NumReceived   int64
	NumSent       int64
	NumIndexed    int64
	NumFailed     int64
	DocsProcessed int64
	LastSourceTs  int64
	LastTargetTs  int64
	LastIndexTs   int64
}

func (p *Progress) addReceived(n int64)   { atomic.AddInt64(&p.NumReceived, n) }
func (p *Progress) addSent(n int64)       { atomic.AddInt64(&p.NumSent, n) }
func (p *Progress) addIndexed(n int64)    { atomic.AddInt64(&p.NumIndexed, n) }
func (p *Progress) addFailed(n int64)     { atomic.AddInt64(&p.NumFailed, n) }
func (p *Progress) addProcessed(n int64)  { atomic.AddInt64(&p.DocsProcessed, n) }
func (p *Progress) setLastSourceTs(t int64)  { atomic.StoreInt64(&p.LastSourceTs, t) }
func (p *Progress) setLastTargetTs(t int64)  { atomic.StoreInt64(&p.LastTargetTs, t) }
func (p *Progress) setLastIndexTs(t int64)   { atomic.StoreInt64(&p.LastIndexTs, t) }

func (p *Progress) snapshot() Progress {
	return Progress{
		NumReceived:   atomic.LoadInt64(&p.NumReceived),
		NumSent:       atomic.LoadInt64(&p.NumSent),
		NumIndexed:    atomic.LoadInt64(&p.NumIndexed),
		NumFailed:     atomic.LoadInt64(&p.NumFailed),
		DocsProcessed: atomic.LoadInt64(&p.DocsProcessed),
		LastSourceTs:  atomic.LoadInt64(&p.LastSourceTs),
		LastTargetTs:  atomic.LoadInt64(&p.LastTargetTs),
		LastIndexTs:   atomic.LoadInt64(&p.LastIndexTs),
	}
}
