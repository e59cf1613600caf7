package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseDailyTime(t *testing.T) {
	t.Parallel()

	dt, err := ParseDailyTime("02:30")
	if err != nil {
		t.Fatalf("ParseDailyTime error: %v", err)
	}
	if dt.Hour != 2 || dt.Minute != 30 {
		t.Fatalf("parsed %+v, want 02:30", dt)
	}

	for _, bad := range []string{"25:00", "12:61", "noon", ""} {
		if _, err := ParseDailyTime(bad); err == nil {
			t.Fatalf("ParseDailyTime(%q) should fail", bad)
		}
	}
}

func TestNextDaily(t *testing.T) {
	t.Parallel()

	at := DailyTime{Hour: 2, Minute: 0}

	before := time.Date(2026, time.March, 10, 1, 0, 0, 0, time.UTC)
	if got := nextDaily(before, at); got.Day() != 10 || got.Hour() != 2 {
		t.Fatalf("before the slot: got %v", got)
	}

	after := time.Date(2026, time.March, 10, 3, 0, 0, 0, time.UTC)
	if got := nextDaily(after, at); got.Day() != 11 || got.Hour() != 2 {
		t.Fatalf("after the slot: got %v", got)
	}

	exact := time.Date(2026, time.March, 10, 2, 0, 0, 0, time.UTC)
	if got := nextDaily(exact, at); got.Day() != 11 {
		t.Fatalf("exact slot must roll to the next day: got %v", got)
	}
}

func TestRegisterIntervalValidation(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if err := s.RegisterInterval("bad", 0, nil); err == nil {
		t.Fatalf("zero interval must be rejected")
	}
	if err := s.RegisterInterval("ok", time.Minute, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("RegisterInterval error: %v", err)
	}

	statuses, _, _ := s.Status()
	if len(statuses) != 1 || statuses[0].ID != "ok" {
		t.Fatalf("unexpected status: %+v", statuses)
	}
	if !statuses[0].NextRun.After(time.Now().UTC()) {
		t.Fatalf("first run must be scheduled in the future")
	}
}

func TestFireDueRunsDueJobsOnly(t *testing.T) {
	t.Parallel()

	s := New(nil)
	var dueRuns, futureRuns atomic.Int64

	if err := s.RegisterInterval("due", time.Minute, func(context.Context) error {
		dueRuns.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.RegisterInterval("future", time.Minute, func(context.Context) error {
		futureRuns.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// make only the first job due
	due := s.job("due")
	due.mu.Lock()
	due.nextRun = time.Now().UTC().Add(-time.Second)
	due.mu.Unlock()

	s.fireDue(context.Background(), time.Now().UTC())
	waitFor(t, func() bool { return dueRuns.Load() == 1 })

	if futureRuns.Load() != 0 {
		t.Fatalf("job before its next run must not fire")
	}
}

func TestSingleInstanceAndCoalescing(t *testing.T) {
	t.Parallel()

	s := New(nil)
	release := make(chan struct{})
	var runs atomic.Int64

	if err := s.RegisterInterval("slow", time.Minute, func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := s.job("slow")
	job.mu.Lock()
	job.nextRun = time.Now().UTC().Add(-time.Second)
	job.mu.Unlock()

	now := time.Now().UTC()
	s.fireDue(context.Background(), now)
	waitFor(t, func() bool { return runs.Load() == 1 })

	// the trigger firing mid-run is swallowed, not queued
	s.fireDue(context.Background(), now)
	s.fireDue(context.Background(), now)
	if runs.Load() != 1 {
		t.Fatalf("job ran %d times concurrently, want 1", runs.Load())
	}

	close(release)
	waitFor(t, func() bool { return !job.running.Load() })

	job.mu.Lock()
	next := job.nextRun
	job.mu.Unlock()
	if !next.After(now) {
		t.Fatalf("next run must be recomputed from completion, got %v", next)
	}
	if runs.Load() != 1 {
		t.Fatalf("coalesced triggers must not replay, runs = %d", runs.Load())
	}
}

func TestJobFailureKeepsRegistration(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if err := s.RegisterInterval("flaky", time.Minute, func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := s.job("flaky")
	s.execute(context.Background(), job)

	statuses, total, failures := s.Status()
	if len(statuses) != 1 {
		t.Fatalf("failed job must stay registered")
	}
	if statuses[0].Runs != 1 || statuses[0].Failures != 1 {
		t.Fatalf("runs=%d failures=%d, want 1/1", statuses[0].Runs, statuses[0].Failures)
	}
	if total != 1 || failures != 1 {
		t.Fatalf("global totals %d/%d, want 1/1", total, failures)
	}
}

func TestJobPanicRecovered(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if err := s.RegisterInterval("panicky", time.Minute, func(context.Context) error {
		panic("exploded")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := s.job("panicky")
	s.execute(context.Background(), job)

	statuses, _, failures := s.Status()
	if statuses[0].Failures != 1 || failures != 1 {
		t.Fatalf("panic must be counted as a failure: %+v", statuses[0])
	}
	if job.running.Load() {
		t.Fatalf("running flag must be cleared after a panic")
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	s := New(nil)
	var runs atomic.Int64
	if err := s.RegisterInterval("pausable", time.Minute, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	job := s.job("pausable")
	job.mu.Lock()
	job.nextRun = time.Now().UTC().Add(-time.Second)
	job.mu.Unlock()

	if !s.Pause("pausable") {
		t.Fatalf("Pause should find the job")
	}
	s.fireDue(context.Background(), time.Now().UTC())
	time.Sleep(50 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatalf("paused job must not fire")
	}

	if !s.Resume("pausable") {
		t.Fatalf("Resume should find the job")
	}
	s.fireDue(context.Background(), time.Now().UTC())
	waitFor(t, func() bool { return runs.Load() == 1 })

	if s.Pause("ghost") || s.Resume("ghost") {
		t.Fatalf("unknown job ids must report false")
	}
}

func TestSetInterval(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if err := s.RegisterInterval("tunable", time.Hour, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.RegisterDaily("fixed", DailyTime{Hour: 2}, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("register daily: %v", err)
	}

	if err := s.SetInterval("tunable", 10*time.Minute); err != nil {
		t.Fatalf("SetInterval error: %v", err)
	}
	job := s.job("tunable")
	job.mu.Lock()
	interval, next := job.Interval, job.nextRun
	job.mu.Unlock()
	if interval != 10*time.Minute {
		t.Fatalf("interval = %v, want 10m", interval)
	}
	if next.After(time.Now().UTC().Add(10*time.Minute + time.Second)) {
		t.Fatalf("next run not rescheduled: %v", next)
	}

	if err := s.SetInterval("fixed", time.Minute); err == nil {
		t.Fatalf("daily jobs must reject SetInterval")
	}
	if err := s.SetInterval("ghost", time.Minute); err == nil {
		t.Fatalf("unknown jobs must reject SetInterval")
	}
	if err := s.SetInterval("tunable", 0); err == nil {
		t.Fatalf("non-positive interval must be rejected")
	}
}

func TestUnregister(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if err := s.RegisterInterval("temp", time.Minute, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !s.Unregister("temp") {
		t.Fatalf("Unregister should report removal")
	}
	if s.Unregister("temp") {
		t.Fatalf("second Unregister should report false")
	}
	if statuses, _, _ := s.Status(); len(statuses) != 0 {
		t.Fatalf("job still present after Unregister")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Start(ctx) // second start is a no-op

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Stop did not return")
	}

	s.Stop() // stop after stop is a no-op
}

// waitFor polls until the condition holds or the test deadline budget runs
// out. fireDue launches jobs on goroutines, so assertions need a grace
// period.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
