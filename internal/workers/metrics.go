package workers

import (
	"sync/atomic"
	"time"
)

// poolStats are the lock-free counters behind Metrics.
type poolStats struct {
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
	busy      atomic.Int64 // nanoseconds
}

// record accounts for one finished task.
func (s *poolStats) record(err error, d time.Duration) {
	if err != nil {
		s.failed.Add(1)
	} else {
		s.completed.Add(1)
	}
	s.busy.Add(int64(d))
}

// Metrics returns a snapshot of the pool counters. The counters are read one by
// one, so a snapshot taken while tasks finish may be off by the tasks in flight.
func (p *WorkerPool) Metrics() PoolMetrics {
	return PoolMetrics{
		TasksSubmitted: p.stats.submitted.Load(),
		TasksCompleted: p.stats.completed.Load(),
		TasksFailed:    p.stats.failed.Load(),
		TasksRejected:  p.stats.rejected.Load(),
		TotalDuration:  time.Duration(p.stats.busy.Load()),
	}
}
