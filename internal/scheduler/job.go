package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Func is the body of a scheduled job.
type Func func(ctx context.Context) error

// Stats tracks per-job execution history (§4.7).
type Stats struct {
	RunCount      int       `json:"run_count"`
	SuccessCount  int       `json:"success_count"`
	ErrorCount    int       `json:"error_count"`
	SkippedOverlap int      `json:"skipped_overlap"`
	LastRun       time.Time `json:"last_run"`
	LastError     string    `json:"last_error,omitempty"`
	NextRun       time.Time `json:"next_run"`
}

// job is one registered scheduler entry: id, trigger, body, and its own
// running flag and stats. Overlap prevention is per-job: if fn is still
// executing when the trigger fires again, the new invocation is skipped.
type job struct {
	id      string
	name    string
	trigger Trigger
	fn      Func
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	stats   Stats
	wg      sync.WaitGroup
}

func (j *job) snapshotStats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// tryRun executes fn unless already running, returning false if skipped.
func (j *job) tryRun(ctx context.Context) bool {
	j.mu.Lock()
	if j.running {
		j.stats.SkippedOverlap++
		j.mu.Unlock()
		return false
	}
	j.running = true
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		defer func() {
			j.mu.Lock()
			j.running = false
			j.mu.Unlock()
		}()

		j.mu.Lock()
		j.stats.RunCount++
		j.stats.LastRun = time.Now()
		j.mu.Unlock()

		err := j.fn(ctx)

		j.mu.Lock()
		if err != nil {
			j.stats.ErrorCount++
			j.stats.LastError = err.Error()
		} else {
			j.stats.SuccessCount++
			j.stats.LastError = ""
		}
		j.mu.Unlock()
	}()
	return true
}

// runSync executes fn inline and blocks until it finishes, for manual
// triggers that callers want to wait on.
func (j *job) runSync(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.stats.SkippedOverlap++
		j.mu.Unlock()
		return errJobBusy(j.id)
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	j.mu.Lock()
	j.stats.RunCount++
	j.stats.LastRun = time.Now()
	j.mu.Unlock()

	err := j.fn(ctx)

	j.mu.Lock()
	if err != nil {
		j.stats.ErrorCount++
		j.stats.LastError = err.Error()
	} else {
		j.stats.SuccessCount++
		j.stats.LastError = ""
	}
	j.mu.Unlock()
	return err
}

type errJobBusy string

func (e errJobBusy) Error() string { return "job " + string(e) + " is already running" }
