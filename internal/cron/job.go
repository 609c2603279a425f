package cron

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/aatumaykin/ledgercron/internal/workers"
	"github.com/robfig/cron/v3"
)

// TaskTypeCron is the workers.Task type of every firing.
const TaskTypeCron = "cron"

// Dispatcher runs firings off the scheduling goroutine.
type Dispatcher interface {
	Submit(task workers.Task) error
}

// TimerHandle identifies a registered timer.
type TimerHandle struct {
	EntryID cron.EntryID
	Task    int
}

// Entry describes a registered timer.
type Entry struct {
	Handle   TimerHandle
	Schedule string
	Next     time.Time
	Prev     time.Time
}

// Firing is the payload of a dispatched workers.Task.
type Firing struct {
	ID          string
	Spec        *tasks.Spec
	ScheduledAt time.Time

	release func()
	once    *sync.Once
}

// Done must be called when the firing has finished executing. It releases the
// task's overlap guard, if any. Calling it more than once is harmless.
func (f Firing) Done() {
	if f.release != nil && f.once != nil {
		f.once.Do(f.release)
	}
}

// job is one registered task.
type job struct {
	spec     *tasks.Spec
	schedule cron.Schedule
	entryID  cron.EntryID
	running  atomic.Bool
}
