package cron

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/aatumaykin/ledgercron/internal/workers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec(index int, schedule string) *tasks.Spec {
	return &tasks.Spec{
		Index:    index,
		Schedule: schedule,
		Endpoint: tasks.EndpointLedgerSend,
		Params:   &tasks.TransferParams{To: "00", Amount: big.NewInt(10), Symbol: "FBT"},
	}
}

func waitTask(t *testing.T, d *recordingDispatcher, timeout time.Duration) workers.Task {
	t.Helper()
	select {
	case task := <-d.ch:
		return task
	case <-time.After(timeout):
		t.Fatalf("no firing within %s", timeout)
		return workers.Task{}
	}
}

func TestNewScheduler(t *testing.T) {
	scheduler := NewScheduler(Config{}, newRecordingDispatcher(), testLogger(), nil)

	assert.NotNil(t, scheduler.cron)
	assert.NotNil(t, scheduler.logger)
	assert.Equal(t, time.Local, scheduler.config.Location)
	assert.False(t, scheduler.IsStarted())
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(Config{}, newRecordingDispatcher(), testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, scheduler.Start(ctx))
	assert.True(t, scheduler.IsStarted())

	// Start again should fail
	err := scheduler.Start(ctx)
	assert.ErrorIs(t, err, apperr.ErrScheduler)

	stopScheduler(scheduler)
	assert.False(t, scheduler.IsStarted())

	// Stop again is harmless
	stopScheduler(scheduler)
}

func TestScheduler_RegisterInvalidSchedule(t *testing.T) {
	scheduler := NewScheduler(Config{}, newRecordingDispatcher(), testLogger(), nil)

	tests := []string{"", "not a cron", "61 * * * *", "* * * * * * * *"}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := scheduler.Register(testSpec(0, expr))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalidSchedule)
		})
	}
	assert.Empty(t, scheduler.Entries())
}

func TestScheduler_RegisterAllKeepsOrder(t *testing.T) {
	scheduler := NewScheduler(Config{}, newRecordingDispatcher(), testLogger(), nil)

	specs := []*tasks.Spec{
		testSpec(0, "*/5 * * * * *"),
		testSpec(1, "0 0 * * *"),
		testSpec(2, "@hourly"),
	}
	handles, err := scheduler.RegisterAll(specs)
	require.NoError(t, err)
	require.Len(t, handles, 3)

	entries := scheduler.Entries()
	require.Len(t, entries, 3)
	for i := range specs {
		assert.Equal(t, i, handles[i].Task)
		assert.Equal(t, handles[i], entries[i].Handle)
		assert.Equal(t, specs[i].Schedule, entries[i].Schedule)
	}
}

func TestScheduler_RegisterAllFailsFast(t *testing.T) {
	scheduler := NewScheduler(Config{}, newRecordingDispatcher(), testLogger(), nil)

	_, err := scheduler.RegisterAll([]*tasks.Spec{testSpec(0, "@daily"), testSpec(1, "bogus")})
	assert.ErrorIs(t, err, apperr.ErrInvalidSchedule)
}

func TestScheduler_RegisterAfterStop(t *testing.T) {
	scheduler := NewScheduler(Config{}, newRecordingDispatcher(), testLogger(), nil)
	stopScheduler(scheduler)

	_, err := scheduler.Register(testSpec(0, "@daily"))
	assert.ErrorIs(t, err, apperr.ErrScheduleRegistration)
	assert.ErrorIs(t, scheduler.Start(context.Background()), apperr.ErrScheduler)
}

func TestScheduler_DispatchesFirings(t *testing.T) {
	d := newRecordingDispatcher()
	scheduler := NewScheduler(Config{}, d, testLogger(), nil)
	spec := testSpec(0, "* * * * * *")
	_, err := scheduler.Register(spec)
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	defer stopScheduler(scheduler)

	task := waitTask(t, d, 3*time.Second)
	assert.Equal(t, TaskTypeCron, task.Type)
	assert.Nil(t, task.Context)

	firing, ok := task.Payload.(Firing)
	require.True(t, ok)
	assert.Same(t, spec, firing.Spec)
	assert.Equal(t, task.ID, firing.ID)
	assert.False(t, firing.ScheduledAt.IsZero())

	id, err := uuid.Parse(firing.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestScheduler_OverlapAllowedByDefault(t *testing.T) {
	d := newRecordingDispatcher()
	scheduler := NewScheduler(Config{}, d, testLogger(), nil)
	_, err := scheduler.Register(testSpec(0, "* * * * * *"))
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	defer stopScheduler(scheduler)

	// Neither firing calls Done, the second one is dispatched anyway.
	first := waitTask(t, d, 3*time.Second)
	second := waitTask(t, d, 3*time.Second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestScheduler_SkipOverlapping(t *testing.T) {
	d := newRecordingDispatcher()
	scheduler := NewScheduler(Config{SkipOverlapping: true}, d, testLogger(), nil)
	_, err := scheduler.Register(testSpec(0, "* * * * * *"))
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	defer stopScheduler(scheduler)

	first := waitTask(t, d, 3*time.Second)

	// While the first firing is running, the next ones are skipped.
	select {
	case task := <-d.ch:
		t.Fatalf("unexpected overlapping firing %s", task.ID)
	case <-time.After(2200 * time.Millisecond):
	}

	first.Payload.(Firing).Done()
	second := waitTask(t, d, 3*time.Second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestScheduler_DispatchFailureReleasesGuard(t *testing.T) {
	d := newRecordingDispatcher()
	d.err = apperr.New(apperr.KindJobDispatch, "pool stopped", errors.New("stopped"))
	scheduler := NewScheduler(Config{SkipOverlapping: true}, d, testLogger(), nil)
	spec := testSpec(0, "* * * * * *")
	_, err := scheduler.Register(spec)
	require.NoError(t, err)

	j := scheduler.jobs[0]
	scheduler.executeJob(j)
	assert.False(t, j.running.Load())
	assert.Equal(t, 0, d.count())
}

func TestScheduler_TaskReleaseFreesGuard(t *testing.T) {
	d := newRecordingDispatcher()
	scheduler := NewScheduler(Config{SkipOverlapping: true}, d, testLogger(), nil)
	_, err := scheduler.Register(testSpec(0, "* * * * * *"))
	require.NoError(t, err)

	j := scheduler.jobs[0]
	scheduler.executeJob(j)
	task := waitTask(t, d, time.Second)
	assert.True(t, j.running.Load())

	// A pool that drops the task before running it only calls Release.
	require.NotNil(t, task.Release)
	task.Release()
	assert.False(t, j.running.Load())

	task.Payload.(Firing).Done()
	scheduler.executeJob(j)
	assert.Equal(t, 2, d.count())
}

func TestScheduler_NoFiringsAfterStop(t *testing.T) {
	d := newRecordingDispatcher()
	scheduler := NewScheduler(Config{}, d, testLogger(), nil)
	_, err := scheduler.Register(testSpec(0, "* * * * * *"))
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	waitTask(t, d, 3*time.Second)
	stopScheduler(scheduler)

	count := d.count()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, count, d.count())
}

func TestScheduler_RunReturnsOnCancel(t *testing.T) {
	scheduler := NewScheduler(Config{}, newRecordingDispatcher(), testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, scheduler.IsStarted())
}

func TestScheduler_Location(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	d := newRecordingDispatcher()
	scheduler := NewScheduler(Config{Location: loc}, d, testLogger(), nil)
	_, err = scheduler.Register(testSpec(0, "* * * * * *"))
	require.NoError(t, err)

	require.NoError(t, scheduler.Start(context.Background()))
	defer stopScheduler(scheduler)

	task := waitTask(t, d, 3*time.Second)
	assert.Equal(t, loc, task.Payload.(Firing).ScheduledAt.Location())
}

func TestNextFire(t *testing.T) {
	from := time.Date(2026, 10, 17, 12, 0, 2, 0, time.UTC)

	next, err := NextFire("*/5 * * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 17, 12, 0, 5, 0, time.UTC), next)

	next, err = NextFire("0 0 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), next)

	_, err = NextFire("bogus", from)
	assert.ErrorIs(t, err, apperr.ErrInvalidSchedule)
}

func TestFiring_DoneIsIdempotent(t *testing.T) {
	// Firing without a guard
	Firing{}.Done()

	calls := 0
	f := Firing{release: func() { calls++ }, once: &sync.Once{}}
	f.Done()
	f.Done()
	assert.Equal(t, 1, calls)
}
