// Package scheduler runs the engine's recurring jobs: processing cycles,
// the daily briefing, and approval expiry sweeps.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/core/logging"
	"github.com/hay-kot/steward/internal/vault"
)

// degradedThreshold is how many consecutive failures mark a job degraded.
// A degraded job keeps running; the marker only surfaces in reporting.
const degradedThreshold = 3

// JobFunc is the work a job performs. The context carries the scheduler's
// shutdown signal.
type JobFunc func(ctx context.Context) error

// Job is one recurring task. Either Interval (periodic) or At (fixed time
// of day, UTC) is set, never both.
type Job struct {
	Name     string
	Interval time.Duration
	At       string // "15:04", empty for periodic jobs
	Run      JobFunc
}

type jobState struct {
	job     Job
	nextRun time.Time

	lastRun    time.Time
	lastResult string
	failures   int
}

// Scheduler drives registered jobs from a single loop. Jobs run one at a
// time; a slow job delays the others rather than overlapping them, which
// keeps every job's view of the vault consistent.
type Scheduler struct {
	now func() time.Time
	log zerolog.Logger

	mu   sync.Mutex
	jobs []*jobState
}

// Option customizes a Scheduler during construction.
type Option func(*Scheduler)

// WithClock overrides the scheduler's clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = clock
	}
}

// New builds an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		now: time.Now,
		log: logging.Component("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. Periodic jobs first fire one interval after
// registration; daily jobs fire at their next occurrence of At.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a run func")
	}
	if (j.Interval > 0) == (j.At != "") {
		return fmt.Errorf("scheduler: job %s must set exactly one of interval or time of day", j.Name)
	}

	st := &jobState{job: j}
	now := s.now().UTC()
	if j.Interval > 0 {
		st.nextRun = now.Add(j.Interval)
	} else {
		at, err := nextDaily(now, j.At)
		if err != nil {
			return fmt.Errorf("scheduler: job %s: %w", j.Name, err)
		}
		st.nextRun = at
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, st)
	return nil
}

// nextDaily returns the next occurrence of the "15:04" clock time strictly
// after now, in UTC.
func nextDaily(now time.Time, at string) (time.Time, error) {
	parsed, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q", at)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Tick runs every job that is due and reschedules it. The next fire time
// advances from the scheduled time, not the completion time, so slow runs
// do not drift the cadence. Returns how many jobs ran.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now().UTC()
	ran := 0

	for _, st := range s.due(now) {
		ran++
		err := s.runOne(ctx, st)

		s.mu.Lock()
		st.lastRun = now
		if err != nil {
			st.failures++
			st.lastResult = err.Error()
			s.log.Error().Err(err).Str("job", st.job.Name).Int("consecutive_failures", st.failures).Msg("job failed")
		} else {
			st.failures = 0
			st.lastResult = "ok"
		}

		if st.job.Interval > 0 {
			// Catch up without bursting if several intervals were missed.
			for !st.nextRun.After(now) {
				st.nextRun = st.nextRun.Add(st.job.Interval)
			}
		} else {
			next, _ := nextDaily(now, st.job.At)
			st.nextRun = next
		}
		s.mu.Unlock()
	}
	return ran
}

func (s *Scheduler) due(now time.Time) []*jobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*jobState
	for _, st := range s.jobs {
		if !st.nextRun.After(now) {
			due = append(due, st)
		}
	}
	// Earliest-due first, so the most overdue work runs before the rest.
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].nextRun.Before(due[j].nextRun)
	})
	return due
}

// runOne contains a job panic so one broken job cannot take the loop down.
func (s *Scheduler) runOne(ctx context.Context, st *jobState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", st.job.Name, r)
		}
	}()
	return st.job.Run(ctx)
}

// Kick marks a job due now, so the next tick runs it ahead of schedule.
// Used by the filesystem watcher to shorten latency on new files.
func (s *Scheduler) Kick(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.jobs {
		if st.job.Name == name {
			st.nextRun = s.now().UTC()
			return
		}
	}
}

// Run drives Tick on the given resolution until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, resolution time.Duration) {
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Health reports every job for the status projection, sorted by name.
func (s *Scheduler) Health() []vault.JobHealth {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]vault.JobHealth, 0, len(s.jobs))
	for _, st := range s.jobs {
		out = append(out, vault.JobHealth{
			Name:                st.job.Name,
			LastRun:             st.lastRun,
			LastResult:          st.lastResult,
			NextRun:             st.nextRun,
			ConsecutiveFailures: st.failures,
			Degraded:            st.failures >= degradedThreshold,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
