// Package scheduler implements the C7 cooperative scheduler: it registers
// a fixed catalog of jobs, runs them on robfig/cron triggers, tracks
// per-job statistics, prevents overlapping runs, and supports both
// schedule-driven and manual execution.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/apierr"
)

// DefaultShutdownDeadline is how long Stop waits for in-flight jobs to
// finish before tearing down regardless (§4.7).
const DefaultShutdownDeadline = 30 * time.Second

// Scheduler drives a set of named jobs against their triggers.
type Scheduler struct {
	cron             *cron.Cron
	log              zerolog.Logger
	shutdownDeadline time.Duration

	mu   sync.RWMutex
	jobs map[string]*job
	ctx  context.Context
	stop context.CancelFunc
}

// New constructs a Scheduler. Jobs are registered with Register before
// Start.
func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:             cron.New(cron.WithSeconds()),
		log:              log.With().Str("component", "scheduler").Logger(),
		shutdownDeadline: DefaultShutdownDeadline,
		jobs:             make(map[string]*job),
		ctx:              ctx,
		stop:             cancel,
	}
}

// Register adds a job to the catalog. Must be called before Start.
func (s *Scheduler) Register(id, name string, trigger Trigger, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return apierr.New(apierr.KindValidationError, fmt.Sprintf("job %q already registered", id))
	}

	j := &job{id: id, name: name, trigger: trigger, fn: fn}
	s.jobs[id] = j

	entryID, err := s.cron.AddFunc(trigger.CronSpec(), func() {
		s.log.Debug().Str("job", id).Msg("trigger fired")
		if !j.tryRun(s.ctx) {
			s.log.Warn().Str("job", id).Msg("skipped overlapping run")
		}
	})
	if err != nil {
		delete(s.jobs, id)
		return apierr.Wrap(apierr.KindValidationError, fmt.Sprintf("invalid trigger for job %q", id), err)
	}
	j.entryID = entryID

	s.log.Info().Str("job", id).Str("name", name).Msg("job registered")
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop cancels the run context, stops new triggers, and waits up to the
// shutdown deadline for in-flight scheduled runs; jobs still running past
// the deadline (including RunNow calls, which are not waited for) are
// reported, not forcibly killed (goroutines leak until they return on
// their own).
func (s *Scheduler) Stop() error {
	cronCtx := s.cron.Stop()
	s.stop()

	s.mu.RLock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		for _, j := range jobs {
			j.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.shutdownDeadline):
	}

	s.mu.RLock()
	var stillRunning []string
	for id, j := range s.jobs {
		j.mu.Lock()
		running := j.running
		j.mu.Unlock()
		if running {
			stillRunning = append(stillRunning, id)
		}
	}
	s.mu.RUnlock()

	s.log.Info().Msg("scheduler stopped")
	if len(stillRunning) > 0 {
		return apierr.New(apierr.KindCancelled, fmt.Sprintf("jobs still running past shutdown deadline: %v", stillRunning))
	}
	return nil
}

// RunNow executes a job immediately, outside its schedule, and blocks
// until it completes.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return apierr.New(apierr.KindValidationError, fmt.Sprintf("unknown job %q", id))
	}
	s.log.Info().Str("job", id).Msg("running job on demand")
	return j.runSync(ctx)
}

// Stats returns a snapshot of every job's statistics, keyed by id.
func (s *Scheduler) Stats() map[string]Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Stats, len(s.jobs))
	for id, j := range s.jobs {
		stats := j.snapshotStats()
		stats.NextRun = s.cron.Entry(j.entryID).Next
		out[id] = stats
	}
	return out
}

// Jobs returns the id, display name, and trigger of every registered job,
// in the order they were registered by CatalogEntry.
func (s *Scheduler) Jobs() []CatalogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CatalogEntry, 0, len(s.jobs))
	for _, entry := range Catalog {
		if j, ok := s.jobs[entry.ID]; ok {
			out = append(out, CatalogEntry{ID: j.id, Name: j.name, Trigger: j.trigger})
		}
	}
	return out
}
