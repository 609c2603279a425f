package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/ledgercron/internal/logger"
)

// worker runs a single task and releases its in-flight slot.
func (p *WorkerPool) worker(task Task) {
	defer p.wg.Done()
	defer func() {
		p.prom.SetInflight(p.inflight.Add(-1))
	}()
	if task.Release != nil {
		defer task.Release()
	}

	execCtx := p.ctx
	if task.Context != nil {
		execCtx = task.Context
	}

	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-execCtx.Done():
			p.stats.failed.Add(1)
			p.logger.Warn("task dropped before start",
				logger.Field{Key: "task_id", Value: task.ID},
				logger.Field{Key: "reason", Value: execCtx.Err().Error()})
			return
		}
	}

	result := p.processTask(execCtx, task)

	p.stats.record(result.Error, result.Duration)

	p.logger.Debug("task processed",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "duration_ms", Value: result.Duration.Milliseconds()},
		logger.Field{Key: "error", Value: result.Error})
}

// processTask executes the handler, turning a panic into an error.
func (p *WorkerPool) processTask(ctx context.Context, task Task) (result Result) {
	start := time.Now()
	result.TaskID = task.ID

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("panic: %v", r)
			p.logger.Error("task panic recovered", result.Error,
				logger.Field{Key: "task_id", Value: task.ID})
		}
		result.Duration = time.Since(start)
	}()

	result.Output, result.Error = p.handler(ctx, task)
	return result
}
