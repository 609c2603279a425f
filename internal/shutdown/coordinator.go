// Package shutdown bounds the window in which in-flight firings can finish recording
// their outcome after a termination request.
//
// The coordinator moves through Running -> Draining -> Terminated exactly once:
//  1. Stops the scheduler so no new firing is dispatched
//  2. Stops the dispatch pool so late submissions are rejected
//  3. Waits for in-flight firings, bounded by the grace period
//  4. Cancels whatever is still running and closes the store
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aatumaykin/ledgercron/internal/logger"
)

// DefaultGracePeriod is the drain budget used when none is configured.
const DefaultGracePeriod = 5 * time.Second

// State of the coordinator.
type State int32

const (
	Running State = iota
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Scheduler stops dispatching firings. The returned context is done when timer
// callbacks already running have returned.
type Scheduler interface {
	Stop() context.Context
}

// Pool tracks in-flight firings.
type Pool interface {
	Stop()
	Drain(ctx context.Context) error
	Cancel()
	Inflight() int64
}

// Store is closed last.
type Store interface {
	Close() error
}

// Config configures the Coordinator.
type Config struct {
	// GracePeriod bounds the drain; DefaultGracePeriod when zero.
	GracePeriod time.Duration
	// Signals that start the drain; SIGINT and SIGTERM when empty.
	Signals []os.Signal
}

// Report summarizes a drain.
type Report struct {
	// Abandoned is the number of firings still running when the grace period ran out.
	Abandoned int64
	Elapsed   time.Duration
	TimedOut  bool
	// Err is the error returned by closing the store, if any.
	Err error
}

// Coordinator drives the shutdown state machine.
type Coordinator struct {
	config    Config
	scheduler Scheduler
	pool      Pool
	store     Store
	logger    *logger.Logger

	state  atomic.Int32
	once   sync.Once
	done   chan struct{}
	report Report

	notify func(c chan<- os.Signal, sig ...os.Signal)
	stop   func(c chan<- os.Signal)
	now    func() time.Time
}

// New creates a Coordinator in the Running state. Any of scheduler, pool and store
// may be nil.
func New(cfg Config, scheduler Scheduler, pool Pool, store Store, log *logger.Logger) *Coordinator {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		config:    cfg,
		scheduler: scheduler,
		pool:      pool,
		store:     store,
		logger:    log,
		done:      make(chan struct{}),
		notify:    signal.Notify,
		stop:      signal.Stop,
		now:       time.Now,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Done is closed once the coordinator reaches Terminated.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until a termination signal arrives or ctx is done and returns a
// description of what ended the wait. It does not drain.
func (c *Coordinator) Wait(ctx context.Context) string {
	sigChan := make(chan os.Signal, 1)
	c.notify(sigChan, c.config.Signals...)
	defer c.stop(sigChan)

	select {
	case sig := <-sigChan:
		c.logger.Info("Received shutdown signal", logger.Field{Key: "signal", Value: sig.String()})
		return sig.String()
	case <-ctx.Done():
		c.logger.Info("Shutdown requested", logger.Field{Key: "reason", Value: ctx.Err().Error()})
		return ctx.Err().Error()
	case <-c.done:
		return Terminated.String()
	}
}

// Drain runs the shutdown sequence once and returns its report. Later calls wait for
// the first one and return the same report.
func (c *Coordinator) Drain() Report {
	c.once.Do(func() {
		c.report = c.drain()
		c.state.Store(int32(Terminated))
		close(c.done)
	})
	<-c.done
	return c.report
}

func (c *Coordinator) drain() Report {
	start := c.now()
	c.state.Store(int32(Draining))
	c.logger.Info("Draining in-flight firings",
		logger.Field{Key: "grace_period", Value: c.config.GracePeriod.String()})

	ctx, cancel := context.WithTimeout(context.Background(), c.config.GracePeriod)
	defer cancel()

	var report Report

	if c.scheduler != nil {
		select {
		case <-c.scheduler.Stop().Done():
		case <-ctx.Done():
			c.logger.Warn("Timer callbacks did not return within the grace period")
		}
	}

	if c.pool != nil {
		c.pool.Stop()
		if err := c.pool.Drain(ctx); err != nil {
			report.TimedOut = true
			report.Abandoned = c.pool.Inflight()
			c.logger.Warn("Grace period elapsed, abandoning in-flight firings",
				logger.Field{Key: "abandoned", Value: report.Abandoned},
				logger.Field{Key: "error", Value: err.Error()})
		}
		c.pool.Cancel()
	}

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			report.Err = err
			c.logger.Error("Failed to close store", err)
		}
	}

	report.Elapsed = c.now().Sub(start)
	c.logger.Info("Shutdown complete",
		logger.Field{Key: "elapsed", Value: report.Elapsed.String()},
		logger.Field{Key: "timed_out", Value: report.TimedOut})
	return report
}
