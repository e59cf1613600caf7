package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// tickInterval is how often the loop checks jobs for due triggers.
const tickInterval = time.Second

// JobFunc is the unit of scheduled work. Errors are logged and counted;
// they never unregister the job.
type JobFunc func(ctx context.Context) error

// DailyTime is a cron-like daily trigger at a fixed wall-clock time (UTC).
type DailyTime struct {
	Hour   int
	Minute int
}

// ParseDailyTime parses "HH:MM".
func ParseDailyTime(s string) (DailyTime, error) {
	var dt DailyTime
	if _, err := fmt.Sscanf(s, "%d:%d", &dt.Hour, &dt.Minute); err != nil {
		return DailyTime{}, fmt.Errorf("invalid daily time %q: %w", s, err)
	}
	if dt.Hour < 0 || dt.Hour > 23 || dt.Minute < 0 || dt.Minute > 59 {
		return DailyTime{}, fmt.Errorf("invalid daily time %q", s)
	}
	return dt, nil
}

// Job describes one registered trigger. Exactly one of Interval or At is
// set. A job never runs twice concurrently; triggers firing while an
// instance runs are coalesced into the next computed run.
type Job struct {
	ID       string
	Interval time.Duration
	At       *DailyTime
	Run      JobFunc

	running atomic.Bool
	paused  atomic.Bool

	mu       sync.Mutex
	lastRun  time.Time
	nextRun  time.Time
	runs     int64
	failures int64
}

// JobStatus is a point-in-time snapshot of one job.
type JobStatus struct {
	ID       string
	Running  bool
	Paused   bool
	LastRun  time.Time
	NextRun  time.Time
	Runs     int64
	Failures int64
}

// Scheduler fires registered jobs from a single background tick loop.
type Scheduler struct {
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job

	stop    chan struct{}
	done    chan struct{}
	started bool

	totalRuns     atomic.Int64
	totalFailures atomic.Int64
}

// New builds an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		jobs:   map[string]*Job{},
	}
}

// RegisterInterval adds or replaces an interval-triggered job. The first
// run happens one interval after registration.
func (s *Scheduler) RegisterInterval(id string, interval time.Duration, run JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", id)
	}
	job := &Job{ID: id, Interval: interval, Run: run}
	job.nextRun = time.Now().UTC().Add(interval)
	s.register(job)
	return nil
}

// RegisterDaily adds or replaces a job fired once per day at the given
// wall-clock time.
func (s *Scheduler) RegisterDaily(id string, at DailyTime, run JobFunc) error {
	job := &Job{ID: id, At: &at, Run: run}
	job.nextRun = nextDaily(time.Now().UTC(), at)
	s.register(job)
	return nil
}

func (s *Scheduler) register(job *Job) {
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	s.logger.Info("job registered", "job", job.ID, "next_run", job.nextRun)
}

// Unregister removes a job; a running instance finishes normally.
func (s *Scheduler) Unregister(id string) bool {
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if ok {
		s.logger.Info("job unregistered", "job", id)
	}
	return ok
}

// Pause stops a job from firing without removing it.
func (s *Scheduler) Pause(id string) bool {
	if job := s.job(id); job != nil {
		job.paused.Store(true)
		return true
	}
	return false
}

// Resume re-enables a paused job.
func (s *Scheduler) Resume(id string) bool {
	if job := s.job(id); job != nil {
		job.paused.Store(false)
		return true
	}
	return false
}

// SetInterval reschedules an interval job in place.
func (s *Scheduler) SetInterval(id string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", id)
	}
	job := s.job(id)
	if job == nil {
		return fmt.Errorf("job %s is not registered", id)
	}
	if job.At != nil {
		return fmt.Errorf("job %s is not interval-triggered", id)
	}

	job.mu.Lock()
	job.Interval = interval
	job.nextRun = time.Now().UTC().Add(interval)
	job.mu.Unlock()

	s.logger.Info("job interval updated", "job", id, "interval", interval)
	return nil
}

func (s *Scheduler) job(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Start launches the tick loop. It is a no-op when already started.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.logger.Warn("scheduler already started")
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	s.logger.Info("scheduler started", "tick", tickInterval)
}

// Stop halts the tick loop and waits for it to exit. Running job
// instances are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.fireDue(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		job.mu.Lock()
		ready := !now.Before(job.nextRun)
		job.mu.Unlock()
		if ready && !job.paused.Load() {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		// max one instance per job; a trigger landing mid-run is coalesced
		// because nextRun is recomputed when the instance finishes.
		if !job.running.CompareAndSwap(false, true) {
			continue
		}
		go s.execute(ctx, job)
	}
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	defer job.running.Store(false)

	start := time.Now().UTC()
	err := s.runGuarded(ctx, job)

	finished := time.Now().UTC()
	job.mu.Lock()
	job.lastRun = start
	job.runs++
	if err != nil {
		job.failures++
	}
	if job.At != nil {
		job.nextRun = nextDaily(finished, *job.At)
	} else {
		job.nextRun = finished.Add(job.Interval)
	}
	job.mu.Unlock()

	s.totalRuns.Add(1)
	if err != nil {
		s.totalFailures.Add(1)
		s.logger.Error("job failed", "job", job.ID, "error", err, "elapsed", finished.Sub(start))
		return
	}
	s.logger.Debug("job finished", "job", job.ID, "elapsed", finished.Sub(start))
}

// runGuarded turns a job panic into an error so one bad run never kills
// the scheduler or the job's registration.
func (s *Scheduler) runGuarded(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// Status snapshots every registered job plus the global counters.
func (s *Scheduler) Status() ([]JobStatus, int64, int64) {
	s.mu.Lock()
	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		job.mu.Lock()
		statuses = append(statuses, JobStatus{
			ID:       job.ID,
			Running:  job.running.Load(),
			Paused:   job.paused.Load(),
			LastRun:  job.lastRun,
			NextRun:  job.nextRun,
			Runs:     job.runs,
			Failures: job.failures,
		})
		job.mu.Unlock()
	}
	s.mu.Unlock()

	return statuses, s.totalRuns.Load(), s.totalFailures.Load()
}

// nextDaily returns the next occurrence of the daily time strictly after
// the given moment.
func nextDaily(after time.Time, at DailyTime) time.Time {
	next := time.Date(after.Year(), after.Month(), after.Day(), at.Hour, at.Minute, 0, 0, time.UTC)
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
