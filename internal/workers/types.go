// Package workers dispatches background tasks. Every submitted task runs in its own
// goroutine so a slow task never delays the submitter; the pool tracks in-flight
// tasks and offers a completion barrier for shutdown.
package workers

import (
	"context"
	"errors"
	"time"
)

// Task represents a unit of work to be executed by the pool.
type Task struct {
	ID      string          // Unique task identifier
	Type    string          // Task type, e.g. "cron"
	Payload any             // Task payload
	Context context.Context // Task-specific context; the pool context when nil
	// Release, when set, is called once the task has finished or was dropped before it started.
	Release func()
}

// Result represents the outcome of a task execution.
type Result struct {
	TaskID   string        // ID of the executed task
	Error    error         // Error if execution failed
	Output   string        // Task output
	Duration time.Duration // Execution duration
}

// PoolMetrics tracks execution metrics for the pool.
type PoolMetrics struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64
	TasksRejected  uint64
	TotalDuration  time.Duration
}

// TaskExecutor defines the task-specific execution logic.
type TaskExecutor func(context.Context, Task) (string, error)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool is stopped")
