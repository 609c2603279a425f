package app

import (
	"context"
	"fmt"

	"github.com/aatumaykin/ledgercron/internal/app/builders"
	"github.com/aatumaykin/ledgercron/internal/executor"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"github.com/aatumaykin/ledgercron/internal/shutdown"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Initialize initializes all application components.
// Any error here is fatal: the scheduler never runs with a partial task list.
func (a *App) Initialize(ctx context.Context) error {
	// 1. Create application context
	a.ctx, a.cancel = context.WithCancel(ctx)

	// 2. Load the task list
	specs, err := tasks.Load(a.config.Tasks.Path)
	if err != nil {
		return fmt.Errorf("failed to load task list: %w", err)
	}
	a.specs = specs
	a.logger.Info("Task list loaded",
		logger.Field{Key: "path", Value: a.config.Tasks.Path},
		logger.Field{Key: "tasks", Value: len(specs)})

	// 3. Initialize metrics
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)
	if a.config.Metrics.Enabled {
		a.metricsServer, err = metrics.Listen(a.config.Metrics.Listen, a.registry, a.logger)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	// 4. Initialize ledger client
	newClient := a.newClient
	if newClient == nil {
		newClient = builders.NewClientBuilder(a.config, a.logger).Build
	}
	a.client, err = newClient()
	if err != nil {
		return err
	}

	// 5. Open persistent store
	a.store, err = builders.NewStorageBuilder(a.config, a.logger, a.metrics).Build(a.ctx)
	if err != nil {
		return err
	}

	// 6. Executor, worker pool and scheduler
	a.executor = executor.New(a.client, a.store, a.logger, a.metrics)

	cronBuilder := builders.NewCronBuilder(a.config, a.logger, a.metrics)
	a.workerPool = cronBuilder.BuildPool(a.executor)
	a.cronScheduler, err = cronBuilder.BuildScheduler(a.workerPool, a.specs)
	if err != nil {
		return err
	}

	// 7. Shutdown coordinator
	a.coordinator = shutdown.New(shutdown.Config{
		GracePeriod: a.config.Shutdown.GracePeriod(),
	}, a.cronScheduler, a.workerPool, a.store, a.logger)

	return nil
}
