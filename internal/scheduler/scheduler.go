package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownJob is returned by RunNow for a job name nobody registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is one background task the scheduler drives. Run receives the tick
// time; jobs must be safe to call repeatedly.
type Job interface {
	Name() string
	Run(now time.Time) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
	lastErr string
	runs    int64
}

// JobStatus is a point-in-time snapshot of one registered job, as reported by
// the status endpoint.
type JobStatus struct {
	Name    string        `json:"name"`
	Every   time.Duration `json:"every"`
	LastRun time.Time     `json:"last_run"`
	LastErr string        `json:"last_error,omitempty"`
	Runs    int64         `json:"runs"`
}

// Scheduler runs registered jobs on their own intervals off a single ticker.
// Jobs run sequentially on the scheduler goroutine; a slow job delays the
// others but never overlaps itself.
type Scheduler struct {
	mu     sync.RWMutex
	jobs   []*entry
	tick   time.Duration
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func New(tick time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{tick: tick, logger: logger}
}

// Add registers a job to run every interval. Register all jobs before Start.
func (s *Scheduler) Add(job Job, every time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &entry{job: job, every: every})
}

// Start begins the tick loop. Every job runs once immediately, so a restart
// never waits a full interval before catching up.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		s.runDue(time.Now().UTC())
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runDue(time.Now().UTC())
			}
		}
	}()
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) runDue(now time.Time) {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.jobs {
		if e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			e.lastRun = now
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.run(e, now)
	}
}

func (s *Scheduler) run(e *entry, now time.Time) {
	started := time.Now()
	err := e.job.Run(now)
	elapsed := time.Since(started)

	s.mu.Lock()
	e.runs++
	e.lastErr = ""
	if err != nil {
		e.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", e.job.Name(), "duration", elapsed, "error", err)
	} else {
		s.logger.Debug("job finished", "job", e.job.Name(), "duration", elapsed)
	}
}

// RunNow triggers one job by name outside its schedule.
func (s *Scheduler) RunNow(name string, now time.Time) error {
	s.mu.Lock()
	var target *entry
	for _, e := range s.jobs {
		if e.job.Name() == name {
			target = e
			e.lastRun = now
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.run(target, now)

	s.mu.RLock()
	lastErr := target.lastErr
	s.mu.RUnlock()
	if lastErr != "" {
		return fmt.Errorf("job %s: %s", name, lastErr)
	}
	return nil
}

// Status reports every registered job in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, len(s.jobs))
	for i, e := range s.jobs {
		statuses[i] = JobStatus{
			Name:    e.job.Name(),
			Every:   e.every,
			LastRun: e.lastRun,
			LastErr: e.lastErr,
			Runs:    e.runs,
		}
	}
	return statuses
}
