// Package cron schedules the agent's tasks.
// It uses robfig/cron/v3 for timing; every firing is handed to a Dispatcher so the
// timer loop never waits for a task to execute.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Config configures the Scheduler.
type Config struct {
	// Location is the time zone schedules are evaluated in; time.Local when nil.
	Location *time.Location
	// SkipOverlapping skips a firing while the previous firing of the same task is still running.
	SkipOverlapping bool
}

// Scheduler manages one timer per task
type Scheduler struct {
	cron       *cron.Cron
	logger     *logger.Logger
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	config     Config
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	mu         sync.RWMutex
	now        func() time.Time
	newID      func() (uuid.UUID, error)

	// jobs in registration order
	jobs []*job
}

// NewScheduler creates a new cron scheduler instance
func NewScheduler(cfg Config, dispatcher Dispatcher, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cron:       cron.New(cron.WithParser(parser), cron.WithLocation(cfg.Location)),
		logger:     log,
		dispatcher: dispatcher,
		metrics:    m,
		config:     cfg,
		now:        time.Now,
		newID:      uuid.NewV7,
	}
}

// Register validates spec's schedule and arms a timer for it.
func (s *Scheduler) Register(spec *tasks.Spec) (TimerHandle, error) {
	if spec == nil {
		return TimerHandle{}, apperr.New(apperr.KindScheduleRegistration, "nil task", nil)
	}

	schedule, err := ParseSchedule(spec.Schedule)
	if err != nil {
		return TimerHandle{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return TimerHandle{}, apperr.New(apperr.KindScheduleRegistration,
			fmt.Sprintf("task %d: scheduler is stopped", spec.Index), nil)
	}

	j := &job{spec: spec, schedule: schedule}
	j.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.executeJob(j)
	}))
	s.jobs = append(s.jobs, j)

	s.logger.Info("cron task registered",
		logger.Field{Key: "task", Value: spec.Index},
		logger.Field{Key: "schedule", Value: spec.Schedule},
		logger.Field{Key: "entry_id", Value: j.entryID})

	return TimerHandle{EntryID: j.entryID, Task: spec.Index}, nil
}

// RegisterAll registers every spec in order and fails on the first error.
func (s *Scheduler) RegisterAll(specs []*tasks.Spec) ([]TimerHandle, error) {
	handles := make([]TimerHandle, 0, len(specs))
	for _, spec := range specs {
		h, err := s.Register(spec)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Start starts the timer loop in the background. Cancelling ctx stops it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return apperr.New(apperr.KindScheduler, "scheduler already started", nil)
	}
	if s.stopped {
		return apperr.New(apperr.KindScheduler, "scheduler is stopped", nil)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		logger.Field{Key: "tasks", Value: len(s.jobs)},
		logger.Field{Key: "location", Value: s.config.Location.String()})

	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()

	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	done := s.ctx.Done()
	s.mu.RUnlock()

	<-done
	<-s.Stop().Done()
	return nil
}

// Stop stops the timers; no firing is dispatched after it returns. The returned
// context is done once the timer callbacks that were already running have returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopCtx := s.cron.Stop()
	if s.stopped {
		return stopCtx
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("cron scheduler stopped")
	return stopCtx
}

// Entries returns the registered timers in registration order.
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.jobs))
	for _, j := range s.jobs {
		e := s.cron.Entry(j.entryID)
		entries = append(entries, Entry{
			Handle:   TimerHandle{EntryID: j.entryID, Task: j.spec.Index},
			Schedule: j.spec.Schedule,
			Next:     e.Next,
			Prev:     e.Prev,
		})
	}
	return entries
}

// IsStarted returns true if the scheduler is started and not stopped
func (s *Scheduler) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started && !s.stopped
}
