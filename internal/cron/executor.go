package cron

import (
	"fmt"
	"sync"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/workers"
)

// executeJob dispatches one firing of j. It runs on the timer goroutine and only
// submits; execution happens in the dispatcher.
func (s *Scheduler) executeJob(j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cron job panic recovered", fmt.Errorf("panic: %v", r),
				logger.Field{Key: "task", Value: j.spec.Index})
		}
	}()

	if s.dispatcher == nil {
		s.logger.Error("cron job execution failed: dispatcher is not configured",
			apperr.New(apperr.KindJobDispatch, "dispatcher not available", nil),
			logger.Field{Key: "task", Value: j.spec.Index})
		return
	}

	firing := Firing{
		Spec:        j.spec,
		ScheduledAt: s.now().In(s.config.Location),
	}

	if s.config.SkipOverlapping {
		if !j.running.CompareAndSwap(false, true) {
			s.metrics.RecordSkippedFiring()
			s.logger.Warn("cron job skipped: previous firing still running",
				logger.Field{Key: "task", Value: j.spec.Index})
			return
		}
		firing.release = func() { j.running.Store(false) }
		firing.once = &sync.Once{}
	}

	id, err := s.newID()
	if err != nil {
		firing.Done()
		s.logger.Error("cron job execution failed: could not generate firing id",
			apperr.New(apperr.KindJobDispatch, "firing id", err),
			logger.Field{Key: "task", Value: j.spec.Index})
		return
	}
	firing.ID = id.String()

	task := workers.Task{
		ID:      firing.ID,
		Type:    TaskTypeCron,
		Payload: firing,
		Release: firing.Done,
	}

	if err := s.dispatcher.Submit(task); err != nil {
		firing.Done()
		s.logger.Error("cron job dispatch failed", err,
			logger.Field{Key: "task", Value: j.spec.Index},
			logger.Field{Key: "firing_id", Value: firing.ID})
		return
	}

	s.logger.Debug("cron job submitted",
		logger.Field{Key: "task", Value: j.spec.Index},
		logger.Field{Key: "firing_id", Value: firing.ID},
		logger.Field{Key: "scheduled_at", Value: firing.ScheduledAt})
}
