package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
)

// WorkerPool runs every submitted task in its own goroutine.
type WorkerPool struct {
	handler TaskExecutor
	sem     chan struct{} // nil when concurrency is unbounded

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup

	inflight atomic.Int64
	ctx      context.Context
	cancel   context.CancelFunc

	logger *logger.Logger
	stats  poolStats
	prom   *metrics.Metrics
}

// NewPool creates a pool. maxConcurrent <= 0 leaves concurrency unbounded; otherwise
// at most maxConcurrent tasks execute at once and the rest wait for a slot.
func NewPool(maxConcurrent int, handler TaskExecutor, log *logger.Logger, m *metrics.Metrics) *WorkerPool {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	var sem chan struct{}
	if maxConcurrent > 0 {
		sem = make(chan struct{}, maxConcurrent)
	}

	return &WorkerPool{
		handler: handler,
		sem:     sem,
		ctx:     ctx,
		cancel:  cancel,
		logger:  log,
		prom:    m,
	}
}

// Submit starts task in a new goroutine and returns immediately.
// After Stop it fails with a JobDispatchError.
func (p *WorkerPool) Submit(task Task) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.stats.rejected.Add(1)
		return apperr.New(apperr.KindJobDispatch, fmt.Sprintf("task %s", task.ID), ErrPoolStopped)
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.stats.submitted.Add(1)
	p.prom.SetInflight(p.inflight.Add(1))

	p.logger.Debug("task submitted",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "task_type", Value: task.Type})

	go p.worker(task)
	return nil
}

// Stop makes the pool reject new tasks. Tasks already submitted keep running.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true

	p.logger.Info("worker pool stopped accepting tasks",
		logger.Field{Key: "inflight", Value: p.inflight.Load()})
}

// Drain blocks until every submitted task has finished or ctx is done.
// It must be called after Stop.
func (p *WorkerPool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d task(s) still running: %w", p.inflight.Load(), ctx.Err())
	}
}

// Cancel cancels the pool context, which is the parent of every task that was
// submitted without its own context.
func (p *WorkerPool) Cancel() {
	p.cancel()
}

// Inflight returns the number of tasks that have been submitted and not finished yet.
func (p *WorkerPool) Inflight() int64 {
	return p.inflight.Load()
}
