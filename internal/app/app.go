// Package app provides the main application structure for ledgercron.
// It wires the ledger client, persistent store, executor, worker pool, cron
// scheduler and shutdown coordinator, and manages their lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/cron"
	"github.com/aatumaykin/ledgercron/internal/executor"
	"github.com/aatumaykin/ledgercron/internal/ledger"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"github.com/aatumaykin/ledgercron/internal/shutdown"
	"github.com/aatumaykin/ledgercron/internal/storage"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/aatumaykin/ledgercron/internal/version"
	"github.com/aatumaykin/ledgercron/internal/workers"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
)

// App represents the main application structure.
// It holds references to all major components and manages their lifecycle.
type App struct {
	// Configuration and core services
	config *config.Config
	logger *logger.Logger

	// Task list
	specs []*tasks.Spec

	// Ledger access
	client   ledger.Client
	store    *storage.Ledger
	executor *executor.Executor

	// Scheduled tasks
	cronScheduler *cron.Scheduler

	// Background task execution
	workerPool *workers.WorkerPool

	// Shutdown
	coordinator *shutdown.Coordinator

	// Metrics
	registry      *prometheus.Registry
	metrics       *metrics.Metrics
	metricsServer *metrics.Server

	// Overridable in tests
	newClient func() (ledger.Client, error)
	notify    func(state string) (bool, error)

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Thread-safety
	mu      sync.RWMutex
	started bool
}

// New creates a new App instance with the provided configuration and logger.
// Components are created in Initialize().
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Run starts the application and blocks until a termination signal arrives or the
// context is cancelled.
// It performs the following steps:
//  1. Initializes all components via Initialize()
//  2. Starts the cron scheduler
//  3. Notifies systemd that the service is ready
//  4. Waits for a signal or context cancellation
//  5. Performs graceful shutdown via Shutdown()
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		a.abort()
		return err
	}

	if err := a.Start(); err != nil {
		a.abort()
		return err
	}

	a.sdNotify(daemon.SdNotifyReady)
	a.sdNotify("STATUS=" + version.FormatStartupMessage())
	a.logger.Info("Application is running",
		logger.Field{Key: "tasks", Value: len(a.specs)},
		logger.Field{Key: "version", Value: version.Version})

	a.coordinator.Wait(a.ctx)

	return a.Shutdown()
}

// Start starts the scheduler and, when enabled, the metrics server.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.metricsServer != nil {
		a.metricsServer.Start()
	}
	if err := a.cronScheduler.Start(a.ctx); err != nil {
		return err
	}

	for _, e := range a.cronScheduler.Entries() {
		a.logger.Debug("Next firing",
			logger.Field{Key: "task", Value: e.Handle.Task},
			logger.Field{Key: "schedule", Value: e.Schedule},
			logger.Field{Key: "next", Value: e.Next})
	}

	a.started = true
	return nil
}

// Store returns the persistent ledger.
func (a *App) Store() *storage.Ledger {
	return a.store
}

// Scheduler returns the cron scheduler.
func (a *App) Scheduler() *cron.Scheduler {
	return a.cronScheduler
}

// Specs returns the loaded task list.
func (a *App) Specs() []*tasks.Spec {
	return a.specs
}

func (a *App) sdNotify(state string) {
	if a.notify == nil {
		return
	}
	sent, err := a.notify(state)
	if err != nil {
		a.logger.Warn("Failed to notify systemd",
			logger.Field{Key: "state", Value: state},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}
	if sent {
		a.logger.Debug("Notified systemd", logger.Field{Key: "state", Value: state})
	}
}
