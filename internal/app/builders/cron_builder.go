package builders

import (
	"context"
	"fmt"

	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/cron"
	"github.com/aatumaykin/ledgercron/internal/executor"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/aatumaykin/ledgercron/internal/workers"
)

type CronBuilder struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewCronBuilder(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *CronBuilder {
	return &CronBuilder{
		config:  cfg,
		logger:  log,
		metrics: m,
	}
}

// BuildPool creates the pool executing firings with exec.
func (b *CronBuilder) BuildPool(exec *executor.Executor) *workers.WorkerPool {
	return workers.NewPool(b.config.Scheduler.MaxConcurrent, FiringHandler(exec), b.logger, b.metrics)
}

// BuildScheduler creates the scheduler and registers one timer per spec, in order.
// It does not start it.
func (b *CronBuilder) BuildScheduler(pool cron.Dispatcher, specs []*tasks.Spec) (*cron.Scheduler, error) {
	loc, err := b.config.Scheduler.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
	}

	scheduler := cron.NewScheduler(cron.Config{
		Location:        loc,
		SkipOverlapping: b.config.Scheduler.SkipOverlapping,
	}, pool, b.logger, b.metrics)

	if _, err := scheduler.RegisterAll(specs); err != nil {
		return nil, fmt.Errorf("failed to register tasks: %w", err)
	}
	return scheduler, nil
}

// FiringHandler adapts the executor to the worker pool. The firing's overlap guard is
// released once the outcome has been recorded.
func FiringHandler(exec *executor.Executor) workers.TaskExecutor {
	return func(ctx context.Context, task workers.Task) (string, error) {
		firing, ok := task.Payload.(cron.Firing)
		if !ok {
			return "", fmt.Errorf("unexpected payload %T for task %s", task.Payload, task.ID)
		}
		defer firing.Done()

		o, err := exec.Execute(ctx, executor.Firing{
			ID:          firing.ID,
			Spec:        firing.Spec,
			ScheduledAt: firing.ScheduledAt,
		})
		if err != nil {
			return "", err
		}
		if o.IsFailure() {
			return string(o.Failure.Kind), nil
		}
		return metrics.ResultResponse, nil
	}
}
