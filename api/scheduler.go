/*
scheduler.go - Automated retry of failed apply runs

PURPOSE:
  An update stops at the first failing override operation and leaves the
  schedule partially reconciled. Because planning always starts from a fresh
  read, running the same document again is the recovery path. This
  scheduler does that periodically for runs that failed for transient
  reasons.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Loads runs with status "failed" (rejected runs are never retried)
  - Only the newest run of a schedule is retried; older failed runs are
    marked "superseded" so an old document never overwrites a newer one
  - The retried run is marked "retried" and the new attempt is recorded
    with retry_of pointing at it
  - A run whose retry_of chain already holds MaxAttempts attempts is
    marked "rejected" instead of being retried again

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - MaxAttempts: Attempts per document, the first one included (default: 3,
    0 means no limit)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRetryScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: apply (shared with PUT /api/schedules/{id})
  - overrides/executor.go: Stop-at-first-failure execution
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/schedule-engine/store/sqlite"
)

// RetryScheduler re-applies the documents of failed apply runs.
type RetryScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	MaxAttempts   int
	Enabled       bool

	log    logrus.FieldLogger
	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetryScheduler creates a new scheduler.
func NewRetryScheduler(handler *Handler) *RetryScheduler {
	return &RetryScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Minute,
		MaxAttempts:   3,
		Enabled:       true,
		log:           handler.Log.WithField("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (rs *RetryScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info("disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan bool)
	rs.wg.Add(1)

	go rs.run()

	rs.log.WithField("interval", rs.CheckInterval).Info("started")
}

// Stop stops the scheduler.
func (rs *RetryScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.log.Info("stopped")
	}
}

func (rs *RetryScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndRetry(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndRetry(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *RetryScheduler) RunNow(ctx context.Context) {
	rs.checkAndRetry(ctx)
}

func (rs *RetryScheduler) checkAndRetry(ctx context.Context) {
	store := rs.Handler.Store

	// Newest first, all statuses: the first run seen for a schedule is its latest.
	runs, err := store.GetApplyRuns(ctx, "")
	if err != nil {
		rs.log.WithError(err).Error("failed to list runs")
		return
	}

	latest := make(map[string]string, len(runs))
	byID := make(map[string]sqlite.ApplyRun, len(runs))
	for _, run := range runs {
		if _, seen := latest[run.ScheduleID]; !seen {
			latest[run.ScheduleID] = run.ID
		}
		byID[run.ID] = run
	}

	retried, superseded, failed, exhausted := 0, 0, 0, 0
	for _, run := range runs {
		if run.Status != sqlite.RunFailed {
			continue
		}
		log := rs.log.WithFields(logrus.Fields{"run_id": run.ID, "schedule_id": run.ScheduleID})

		if latest[run.ScheduleID] != run.ID {
			run.Status = sqlite.RunSuperseded
			if err := store.SaveApplyRun(ctx, run); err != nil {
				log.WithError(err).Warn("failed to mark run superseded")
			}
			superseded++
			continue
		}

		if n := attempts(run, byID); rs.MaxAttempts > 0 && n >= rs.MaxAttempts {
			run.Status = sqlite.RunRejected
			run.Error = fmt.Sprintf("giving up after %d attempts: %s", n, run.Error)
			if err := store.SaveApplyRun(ctx, run); err != nil {
				log.WithError(err).Warn("failed to mark run rejected")
			}
			log.WithField("attempts", n).Warn("retry limit reached")
			exhausted++
			continue
		}

		if err := rs.retry(ctx, run); err != nil {
			log.WithError(err).Warn("retry failed")
			failed++
			continue
		}
		retried++
	}

	if retried > 0 || superseded > 0 || failed > 0 || exhausted > 0 {
		rs.log.WithFields(logrus.Fields{
			"retried":    retried,
			"superseded": superseded,
			"failed":     failed,
			"exhausted":  exhausted,
		}).Info("sweep completed")
	}
}

// attempts counts run and the runs it retried, following retry_of.
func attempts(run sqlite.ApplyRun, byID map[string]sqlite.ApplyRun) int {
	n := 1
	for run.RetryOf != "" && n <= len(byID) {
		prev, ok := byID[run.RetryOf]
		if !ok {
			break
		}
		run = prev
		n++
	}
	return n
}

// retry re-applies the run's document. The old run is marked retried
// whatever the outcome; the new run carries the result.
func (rs *RetryScheduler) retry(ctx context.Context, run sqlite.ApplyRun) error {
	h := rs.Handler

	desired, parseErr := h.Factory.ParseJSON([]byte(run.DesiredJSON))
	if parseErr == nil {
		desired.ID = run.ScheduleID
	}

	run.Status = sqlite.RunRetried
	if err := h.Store.SaveApplyRun(ctx, run); err != nil {
		return err
	}
	if parseErr != nil {
		return parseErr
	}

	_, _, err := h.apply(ctx, desired, "retry", run.ID)
	return err
}
