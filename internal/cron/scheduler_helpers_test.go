package cron

import (
	"sync"

	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/workers"
)

// testLogger creates a test logger instance
func testLogger() *logger.Logger {
	log, err := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
		Output: "stdout",
	})
	if err != nil {
		panic(err)
	}
	return log
}

// stopScheduler stops a scheduler and waits for running timer callbacks (for use in defer in tests)
func stopScheduler(s *Scheduler) {
	<-s.Stop().Done()
}

// recordingDispatcher collects submitted tasks.
type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []workers.Task
	err   error
	ch    chan workers.Task
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{ch: make(chan workers.Task, 100)}
}

func (d *recordingDispatcher) Submit(task workers.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, task)
	d.ch <- task
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}
