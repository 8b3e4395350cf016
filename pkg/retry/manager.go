package retry

import (
	"context"
	"strings"
	"time"

	"jamabandi/pkg/logger"
)

// FailureType classifies whether a failed download is worth retrying
type FailureType string

const (
	// FailureTransient is an infrastructure or timing problem worth retrying
	FailureTransient FailureType = "transient"
	// FailurePermanent means retrying cannot change the outcome
	FailurePermanent FailureType = "permanent"
)

// FailedItem tracks one failed khewat and its retry history
type FailedItem struct {
	Khewat     int
	Error      string
	Type       FailureType
	RetryCount int
}

// permanentPatterns mark failures that represent a true absence of data.
// Anything not matching defaults to transient: the bias is optimistic
// because a bounded retry is cheap and a wrongly-abandoned khewat is not.
var permanentPatterns = []string{
	"no record",
	"not found",
	"invalid",
	"does not exist",
}

// maxRetrySleep caps the per-item backoff sleep in RetryAll
const maxRetrySleep = 30 * time.Second

// Manager records download failures, classifies them, and replays the
// transient ones with exponential backoff. It is owned by a single
// goroutine; it does not lock.
type Manager struct {
	maxRetries int
	retryDelay time.Duration
	failures   []*FailedItem
	logger     logger.Logger
}

// NewManager creates a retry manager. maxRetries bounds attempts per
// khewat; retryDelay seeds the exponential backoff.
func NewManager(maxRetries int, retryDelay time.Duration, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     log,
	}
}

// Classify determines whether an error message is transient or permanent
func Classify(errorText string) FailureType {
	lower := strings.ToLower(errorText)
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return FailurePermanent
		}
	}
	return FailureTransient
}

// RecordFailure records a failed download. A repeat failure for the same
// khewat updates the existing entry and bumps its retry counter instead
// of creating a duplicate.
func (m *Manager) RecordFailure(khewat int, errorText string) {
	for _, item := range m.failures {
		if item.Khewat == khewat {
			item.RetryCount++
			item.Error = errorText
			return
		}
	}

	item := &FailedItem{
		Khewat: khewat,
		Error:  errorText,
		Type:   Classify(errorText),
	}
	m.failures = append(m.failures, item)

	m.logger.DebugWithFields("recorded failure", map[string]interface{}{
		"khewat": khewat,
		"type":   string(item.Type),
		"error":  errorText,
	})
}

// GetRetryable returns khewats worth retrying, in insertion order
func (m *Manager) GetRetryable() []int {
	var out []int
	for _, item := range m.failures {
		if item.Type == FailureTransient && item.RetryCount < m.maxRetries {
			out = append(out, item.Khewat)
		}
	}
	return out
}

// GetPermanentFailures returns the failure records that will not be retried
func (m *Manager) GetPermanentFailures() []*FailedItem {
	var out []*FailedItem
	for _, item := range m.failures {
		if item.Type == FailurePermanent {
			out = append(out, item)
		}
	}
	return out
}

// Result aggregates the outcome of one RetryAll pass
type Result struct {
	Retried   int
	Succeeded int
	Failed    int
}

// RetryAll replays every retryable failure through fetch, sleeping
// retryDelay * 2^retryCount (capped at 30s) before each attempt. A nil
// error removes the khewat from the failure set; an error updates the
// record and bumps the counter. Cancelling the context stops the pass.
func (m *Manager) RetryAll(ctx context.Context, fetch func(khewat int) error) Result {
	retryable := m.GetRetryable()
	if len(retryable) == 0 {
		return Result{}
	}

	m.logger.InfoWithFields("retrying failed downloads", map[string]interface{}{
		"count": len(retryable),
	})

	result := Result{Retried: len(retryable)}

	for _, khewat := range retryable {
		item := m.find(khewat)
		if item == nil {
			continue
		}

		delay := m.retryDelay * (1 << item.RetryCount)
		if delay > maxRetrySleep {
			delay = maxRetrySleep
		}

		m.logger.InfoWithFields("retry attempt", map[string]interface{}{
			"khewat":  khewat,
			"attempt": item.RetryCount + 1,
			"max":     m.maxRetries,
			"delay":   delay,
		})

		if err := Wait(ctx, delay); err != nil {
			m.logger.Warn("retry pass cancelled")
			return result
		}

		if err := fetch(khewat); err != nil {
			result.Failed++
			item.RetryCount++
			item.Error = err.Error()
			continue
		}

		result.Succeeded++
		m.remove(khewat)
	}

	return result
}

// Summary holds failure counts by class
type Summary struct {
	Total     int
	Retryable int
	Permanent int
}

// Summary returns current failure counts
func (m *Manager) Summary() Summary {
	return Summary{
		Total:     len(m.failures),
		Retryable: len(m.GetRetryable()),
		Permanent: len(m.GetPermanentFailures()),
	}
}

func (m *Manager) find(khewat int) *FailedItem {
	for _, item := range m.failures {
		if item.Khewat == khewat {
			return item
		}
	}
	return nil
}

func (m *Manager) remove(khewat int) {
	kept := m.failures[:0]
	for _, item := range m.failures {
		if item.Khewat != khewat {
			kept = append(kept, item)
		}
	}
	m.failures = kept
}
