package app

import (
	"context"
	"time"

	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Shutdown performs graceful shutdown of all components.
// It stops the application in the following order:
//  1. Notifies systemd that the service is stopping
//  2. Drains through the coordinator (scheduler, worker pool, store)
//  3. Stops the metrics server
//  4. Cancels the application context
//
// The method is thread-safe and idempotent.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.coordinator == nil {
		return nil
	}

	a.sdNotify(daemon.SdNotifyStopping)

	report := a.coordinator.Drain()
	if report.TimedOut {
		a.logger.Warn("Some firings did not finish before the grace period elapsed",
			logger.Field{Key: "abandoned", Value: report.Abandoned})
	}

	a.stopMetricsServer()

	if a.cancel != nil {
		a.cancel()
	}
	a.started = false

	stats := a.workerPool.Metrics()
	a.logger.Info("Application shutdown complete",
		logger.Field{Key: "elapsed", Value: report.Elapsed.String()},
		logger.Field{Key: "firings", Value: stats.TasksSubmitted},
		logger.Field{Key: "failed", Value: stats.TasksFailed},
		logger.Field{Key: "rejected", Value: stats.TasksRejected})
	return report.Err
}

// abort releases whatever Initialize managed to create.
func (a *App) abort() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cronScheduler != nil {
		<-a.cronScheduler.Stop().Done()
	}
	if a.workerPool != nil {
		a.workerPool.Stop()
		a.workerPool.Cancel()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Failed to close store", err)
		}
	}
	a.stopMetricsServer()
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *App) stopMetricsServer() {
	if a.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to stop metrics server", err)
	}
	a.metricsServer = nil
}
