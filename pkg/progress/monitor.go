package progress

import (
	"fmt"
	"sync"
	"time"
)

// Monitor tracks in-flight run metrics: counts, bytes, download speed over
// a sliding window, and an ETA estimate. Unlike Tracker it is not
// persisted; it exists for live status lines.
type Monitor struct {
	mu sync.Mutex

	total           int
	completed       int
	failed          int
	bytesDownloaded int64

	window    time.Duration
	recent    []time.Time
	startTime time.Time
}

// NewMonitor creates a monitor for a run of total items. The window bounds
// the speed calculation (default 60s when zero).
func NewMonitor(total int, window time.Duration) *Monitor {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Monitor{
		total:     total,
		window:    window,
		startTime: time.Now(),
	}
}

// RecordSuccess records one successful download
func (m *Monitor) RecordSuccess(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.completed++
	m.bytesDownloaded += bytes
	m.recent = append(m.recent, time.Now())
	m.pruneLocked()
}

// RecordFailure records one failed download
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed++
}

// Snapshot holds a point-in-time view of run metrics
type Snapshot struct {
	Completed          int
	Failed             int
	Pending            int
	Total              int
	BytesDownloaded    int64
	DownloadsPerMinute float64
	ETA                time.Duration // zero when unknown
	SuccessRate        float64       // 0-100
	Elapsed            time.Duration
}

// Stats returns the current metrics
func (m *Monitor) Stats() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked()

	snap := Snapshot{
		Completed:       m.completed,
		Failed:          m.failed,
		Pending:         m.total - m.completed - m.failed,
		Total:           m.total,
		BytesDownloaded: m.bytesDownloaded,
		Elapsed:         time.Since(m.startTime),
	}

	if n := len(m.recent); n > 0 {
		span := m.recent[n-1].Sub(m.recent[0])
		if span > 0 {
			snap.DownloadsPerMinute = float64(n) / span.Minutes()
		} else if n == 1 {
			sinceStart := m.recent[0].Sub(m.startTime)
			if sinceStart > 0 {
				snap.DownloadsPerMinute = 1 / sinceStart.Minutes()
			}
		}
	}

	if snap.DownloadsPerMinute > 0 && snap.Pending > 0 {
		minutes := float64(snap.Pending) / snap.DownloadsPerMinute
		snap.ETA = time.Duration(minutes * float64(time.Minute))
	}

	if processed := m.completed + m.failed; processed > 0 {
		snap.SuccessRate = float64(m.completed) / float64(processed) * 100
	}

	return snap
}

// Format renders a one-line human-readable status
func (m *Monitor) Format() string {
	s := m.Stats()

	processed := s.Completed + s.Failed
	pct := 0.0
	if s.Total > 0 {
		pct = float64(processed) / float64(s.Total) * 100
	}

	eta := "--"
	if s.ETA > 0 {
		eta = formatETA(s.ETA)
	}

	return fmt.Sprintf("Progress: %d/%d (%.1f%%) | OK: %d | Failed: %d | Speed: %.1f/min | ETA: %s | %s",
		processed, s.Total, pct, s.Completed, s.Failed, s.DownloadsPerMinute, eta, formatBytes(s.BytesDownloaded))
}

// pruneLocked drops window-expired entries. Callers must hold the mutex.
func (m *Monitor) pruneLocked() {
	cutoff := time.Now().Add(-m.window)
	i := 0
	for i < len(m.recent) && m.recent[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.recent = m.recent[i:]
	}
}

func formatBytes(b int64) string {
	switch {
	case b < 1024:
		return fmt.Sprintf("%d B", b)
	case b < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	}
}

func formatETA(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		return "--"
	}
	if secs >= 60 {
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}
