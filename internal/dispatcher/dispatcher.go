// Package dispatcher partitions the pending khewat range into
// contiguous batches and runs one form session per worker against the
// shared progress tracker.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jamabandi/pkg/logger"
	"jamabandi/pkg/portal"
	"jamabandi/pkg/progress"
	"jamabandi/pkg/ratelimit"
)

// RecordFetcher is the per-worker form state machine. Each worker owns
// its own instance; fetchers are never shared.
type RecordFetcher interface {
	Ready() bool
	Expired() bool
	InitializeForm() error
	SetupFormSelections() error
	FetchRecord(khewat int) portal.FetchResult
}

// FetcherFactory builds an independent fetcher for one worker
type FetcherFactory func(workerID int) (RecordFetcher, error)

// LimiterFactory builds an independent rate limiter for one worker
type LimiterFactory func() ratelimit.Limiter

// Result aggregates one dispatch pass
type Result struct {
	Processed      int
	Succeeded      int
	Failed         int
	Skipped        int
	SessionExpired bool
	WorkerErrors   []error
	Elapsed        time.Duration
}

// Dispatcher coordinates the worker pool. The tracker is the only
// shared mutable state; its internal lock serializes all writes.
type Dispatcher struct {
	workers    int
	newFetcher FetcherFactory
	newLimiter LimiterFactory
	tracker    *progress.Tracker
	monitor    *progress.Monitor
	logger     logger.Logger

	mu     sync.Mutex
	result Result
}

// New creates a dispatcher. workers is clamped to at least one; monitor
// may be nil.
func New(workers int, newFetcher FetcherFactory, newLimiter LimiterFactory, tracker *progress.Tracker, monitor *progress.Monitor, log logger.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Dispatcher{
		workers:    workers,
		newFetcher: newFetcher,
		newLimiter: newLimiter,
		tracker:    tracker,
		monitor:    monitor,
		logger:     log,
	}
}

// SplitBatches divides ids into at most n contiguous chunks, earliest
// chunks taking the remainder, preserving order within each chunk
func SplitBatches(ids []int, n int) [][]int {
	if n < 1 {
		n = 1
	}
	if n > len(ids) {
		n = len(ids)
	}
	if len(ids) == 0 {
		return nil
	}

	base := len(ids) / n
	remainder := len(ids) % n

	batches := make([][]int, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < remainder {
			size++
		}
		batches = append(batches, ids[start:start+size])
		start += size
	}
	return batches
}

// Run processes the pending ids with the configured worker count and
// blocks until every worker finishes. Cancellation stops scheduling new
// items; the in-flight item completes first.
func (d *Dispatcher) Run(ctx context.Context, pending []int) Result {
	start := time.Now()
	d.result = Result{}

	if len(pending) == 0 {
		return d.result
	}

	d.tracker.StartRun()

	batches := SplitBatches(pending, d.workers)
	d.logger.InfoWithFields("starting workers", map[string]interface{}{
		"workers": len(batches),
		"pending": len(pending),
	})

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go d.runWorker(ctx, i+1, batch, &wg)
	}
	wg.Wait()

	d.result.Elapsed = time.Since(start)
	d.tracker.AddElapsed(d.result.Elapsed)
	if err := d.tracker.Flush(); err != nil {
		d.logger.ErrorWithFields("failed to flush progress", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return d.result
}

// runWorker processes one contiguous batch with its own fetcher and
// limiter. A panic kills only this worker; remaining ids stay pending.
func (d *Dispatcher) runWorker(ctx context.Context, workerID int, batch []int, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %d panicked: %v", workerID, r)
			d.logger.ErrorWithFields("worker panic", map[string]interface{}{
				"worker": workerID,
				"panic":  fmt.Sprint(r),
			})
			d.addWorkerError(err)
		}
	}()

	log := d.logger.WithField("worker", workerID)
	log.InfoWithFields("worker starting", map[string]interface{}{
		"batch_size": len(batch),
		"first":      batch[0],
		"last":       batch[len(batch)-1],
	})

	fetcher, err := d.newFetcher(workerID)
	if err != nil {
		d.addWorkerError(fmt.Errorf("worker %d: failed to create session: %w", workerID, err))
		return
	}
	limiter := d.newLimiter()

	for _, khewat := range batch {
		select {
		case <-ctx.Done():
			log.Info("worker stopping on cancellation")
			return
		default:
		}

		// Another worker or a previous run may have finished this id.
		if d.tracker.IsCompleted(khewat) {
			d.mu.Lock()
			d.result.Skipped++
			d.mu.Unlock()
			continue
		}

		if !fetcher.Ready() {
			if err := fetcher.InitializeForm(); err != nil {
				d.failWorkerSetup(log, workerID, "form initialization failed", err, fetcher)
				return
			}
			if err := fetcher.SetupFormSelections(); err != nil {
				d.failWorkerSetup(log, workerID, "form setup failed", err, fetcher)
				return
			}
		}

		limiter.Wait()

		result := fetcher.FetchRecord(khewat)
		if result.StatusCode != 0 {
			limiter.RecordResponse(result.StatusCode, result.Elapsed)
		}

		d.recordResult(log, workerID, khewat, result)

		if result.Outcome == portal.OutcomeSessionExpired {
			log.Warn("session expired, stopping worker; remaining items stay pending")
			d.mu.Lock()
			d.result.SessionExpired = true
			d.mu.Unlock()
			return
		}
	}

	log.Info("worker finished batch")
}

func (d *Dispatcher) recordResult(log logger.Logger, workerID, khewat int, result portal.FetchResult) {
	d.mu.Lock()
	d.result.Processed++
	d.mu.Unlock()

	switch result.Outcome {
	case portal.OutcomeSaved:
		if err := d.tracker.MarkComplete(khewat, result.Bytes); err != nil {
			log.ErrorWithFields("failed to record completion", map[string]interface{}{
				"khewat": khewat,
				"error":  err.Error(),
			})
		}
		if d.monitor != nil {
			d.monitor.RecordSuccess(result.Bytes)
		}
		d.mu.Lock()
		d.result.Succeeded++
		d.mu.Unlock()

		log.InfoWithFields("record saved", map[string]interface{}{
			"khewat": khewat,
			"bytes":  result.Bytes,
			"path":   result.Path,
		})

	case portal.OutcomeFailed:
		if err := d.tracker.MarkFailed(khewat, result.Error); err != nil {
			log.ErrorWithFields("failed to record failure", map[string]interface{}{
				"khewat": khewat,
				"error":  err.Error(),
			})
		}
		if d.monitor != nil {
			d.monitor.RecordFailure()
		}
		d.mu.Lock()
		d.result.Failed++
		d.mu.Unlock()

		log.WarnWithFields("record failed", map[string]interface{}{
			"khewat":    khewat,
			"reason":    result.Error,
			"permanent": result.Permanent,
		})

	case portal.OutcomeSessionExpired:
		// Not an item failure; the id stays pending for a later run.
	}
}

// failWorkerSetup records a worker-fatal startup condition. A setup
// failure caused by session expiry flags the whole run.
func (d *Dispatcher) failWorkerSetup(log logger.Logger, workerID int, msg string, err error, fetcher RecordFetcher) {
	log.ErrorWithFields(msg, map[string]interface{}{
		"error": err.Error(),
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	d.result.WorkerErrors = append(d.result.WorkerErrors, fmt.Errorf("worker %d: %s: %w", workerID, msg, err))
	if fetcher.Expired() {
		d.result.SessionExpired = true
	}
}

func (d *Dispatcher) addWorkerError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.result.WorkerErrors = append(d.result.WorkerErrors, err)
}
