package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Limiter defines the interface for request throttling
type Limiter interface {
	// Wait blocks until it is safe to issue the next request
	Wait()
	// RecordResponse feeds a response status and latency back into the limiter
	RecordResponse(statusCode int, elapsed time.Duration)
	// Reset restores the limiter to its initial state
	Reset()
}

// Adaptive is a per-connection limiter that widens or narrows the
// inter-request delay based on observed latency and HTTP status. Each
// worker owns its own instance; there is no cross-worker coupling.
//
// Behavior:
//   - 429 responses open a hard backoff window that grows exponentially
//     with consecutive errors, capped at 60s, and double the current delay.
//   - 5xx responses grow the delay by 1.5x without a hard window.
//   - Healthy responses decay the delay by 0.9x once a full latency
//     window averages under one second with no outstanding errors.
//
// The asymmetry (fast growth, slow decay) avoids oscillating around the
// server's tolerance.
type Adaptive struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	windowSize int

	mu              sync.Mutex
	currentDelay    time.Duration
	latencies       []time.Duration
	errorCount      int
	lastRequestTime time.Time
	backoffUntil    time.Time
}

// maxBackoff caps the hard backoff window after repeated 429s
const maxBackoff = 60 * time.Second

// NewAdaptive creates an adaptive limiter bounded by [minDelay, maxDelay].
// windowSize is the number of recent latencies considered for decay
// (default 10 when non-positive).
func NewAdaptive(minDelay, maxDelay time.Duration, windowSize int) *Adaptive {
	if windowSize <= 0 {
		windowSize = 10
	}
	return &Adaptive{
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		windowSize:   windowSize,
		currentDelay: minDelay,
		latencies:    make([]time.Duration, 0, windowSize),
	}
}

// Wait blocks until the next request may be issued. The wait duration is
// computed under the lock; the sleep itself happens outside it so the
// worker's own stat reads are never blocked for the full delay.
func (a *Adaptive) Wait() {
	var wait time.Duration

	a.mu.Lock()
	now := time.Now()
	if now.Before(a.backoffUntil) {
		wait = a.backoffUntil.Sub(now)
	} else if elapsed := now.Sub(a.lastRequestTime); elapsed < a.currentDelay {
		wait = a.currentDelay - elapsed
	}
	// Stamp the anticipated request time before releasing the lock
	a.lastRequestTime = now.Add(wait)
	a.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
}

// RecordResponse adjusts the delay based on one response outcome.
// Client errors other than 429 carry no rate signal and are ignored.
func (a *Adaptive) RecordResponse(statusCode int, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case statusCode == 429:
		a.handleRateLimitLocked()
	case statusCode >= 500:
		a.handleServerErrorLocked()
	case statusCode < 400:
		a.handleSuccessLocked(elapsed)
	}
}

// handleRateLimitLocked applies exponential backoff after a 429
func (a *Adaptive) handleRateLimitLocked() {
	a.errorCount++
	backoff := time.Duration(math.Pow(2, float64(a.errorCount))) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	a.backoffUntil = time.Now().Add(backoff)
	a.currentDelay = clampDelay(a.currentDelay*2, a.minDelay, a.maxDelay)
}

func (a *Adaptive) handleServerErrorLocked() {
	a.errorCount++
	a.currentDelay = clampDelay(a.currentDelay*3/2, a.minDelay, a.maxDelay)
}

func (a *Adaptive) handleSuccessLocked(elapsed time.Duration) {
	a.latencies = append(a.latencies, elapsed)
	if len(a.latencies) > a.windowSize {
		a.latencies = a.latencies[1:]
	}
	if a.errorCount > 0 {
		a.errorCount--
	}

	if len(a.latencies) >= a.windowSize && a.errorCount == 0 && a.avgLatencyLocked() < time.Second {
		a.currentDelay = clampDelay(a.currentDelay*9/10, a.minDelay, a.maxDelay)
	}
}

// avgLatencyLocked returns the mean of the window, zero when empty.
// Callers must hold the mutex.
func (a *Adaptive) avgLatencyLocked() time.Duration {
	if len(a.latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range a.latencies {
		sum += l
	}
	return sum / time.Duration(len(a.latencies))
}

// Reset restores the limiter to its initial state
func (a *Adaptive) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.currentDelay = a.minDelay
	a.latencies = a.latencies[:0]
	a.errorCount = 0
	a.lastRequestTime = time.Time{}
	a.backoffUntil = time.Time{}
}

// Stats is a read-only snapshot of the limiter's state
type Stats struct {
	CurrentDelay time.Duration
	ErrorCount   int
	AvgLatency   time.Duration
	BackoffUntil time.Time
}

// Stats returns the current limiter state
func (a *Adaptive) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		CurrentDelay: a.currentDelay,
		ErrorCount:   a.errorCount,
		AvgLatency:   a.avgLatencyLocked(),
		BackoffUntil: a.backoffUntil,
	}
}

func clampDelay(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
