package retry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"jamabandi/pkg/logger"
)

func newTestManager(maxRetries int) *Manager {
	return NewManager(maxRetries, time.Millisecond, logger.NewNopLogger())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		errorText string
		want      FailureType
	}{
		{"No record found", FailurePermanent},
		{"no RECORD found", FailurePermanent},
		{"Record not found", FailurePermanent},
		{"Invalid khewat number", FailurePermanent},
		{"khewat does not exist", FailurePermanent},
		{"Connection timeout", FailureTransient},
		{"Timeout", FailureTransient},
		{"HTTP 503", FailureTransient},
		{"session expired", FailureTransient},
		{"something weird happened", FailureTransient},
	}

	for _, tt := range tests {
		if got := Classify(tt.errorText); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.errorText, got, tt.want)
		}
	}
}

func TestRecordFailureDeduplicates(t *testing.T) {
	m := newTestManager(3)

	m.RecordFailure(5, "Timeout")
	m.RecordFailure(5, "HTTP 500")
	m.RecordFailure(5, "Connection refused")

	s := m.Summary()
	if s.Total != 1 {
		t.Fatalf("expected 1 entry after repeat failures, got %d", s.Total)
	}

	item := m.find(5)
	if item.RetryCount != 2 {
		t.Errorf("expected retry count 2, got %d", item.RetryCount)
	}
	if item.Error != "Connection refused" {
		t.Errorf("expected latest error text, got %q", item.Error)
	}
}

func TestGetRetryableFiltersAndOrders(t *testing.T) {
	m := newTestManager(2)

	m.RecordFailure(10, "Timeout")
	m.RecordFailure(3, "No record found") // permanent, excluded
	m.RecordFailure(7, "HTTP 502")
	m.RecordFailure(12, "Timeout")
	m.RecordFailure(12, "Timeout") // second failure
	m.RecordFailure(12, "Timeout") // hits the max, excluded

	want := []int{10, 7}
	if got := m.GetRetryable(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected retryable %v (insertion order), got %v", want, got)
	}
}

func TestGetPermanentFailures(t *testing.T) {
	m := newTestManager(3)
	m.RecordFailure(1, "Timeout")
	m.RecordFailure(2, "No record found")
	m.RecordFailure(3, "does not exist")

	perms := m.GetPermanentFailures()
	if len(perms) != 2 {
		t.Fatalf("expected 2 permanent failures, got %d", len(perms))
	}
	if perms[0].Khewat != 2 || perms[1].Khewat != 3 {
		t.Errorf("unexpected permanent set: %+v", perms)
	}
}

func TestRetryAll(t *testing.T) {
	m := newTestManager(3)
	m.RecordFailure(4, "Timeout")
	m.RecordFailure(6, "HTTP 500")
	m.RecordFailure(3, "No record found")

	attempts := make(map[int]int)
	result := m.RetryAll(context.Background(), func(khewat int) error {
		attempts[khewat]++
		if khewat == 6 {
			return errors.New("still broken")
		}
		return nil
	})

	if result.Retried != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if attempts[3] != 0 {
		t.Error("permanent failure must not be retried")
	}

	// Success removed 4; 6 remains with bumped counter
	if m.find(4) != nil {
		t.Error("successful retry should remove the failure entry")
	}
	if item := m.find(6); item == nil || item.RetryCount != 1 || item.Error != "still broken" {
		t.Errorf("failed retry should update the entry, got %+v", item)
	}
}

func TestRetryAllEmpty(t *testing.T) {
	m := newTestManager(3)
	called := false
	result := m.RetryAll(context.Background(), func(int) error {
		called = true
		return nil
	})
	if called || result.Retried != 0 {
		t.Error("RetryAll with no failures should do nothing")
	}
}

func TestRetryAllHonorsContext(t *testing.T) {
	m := NewManager(3, time.Minute, logger.NewNopLogger())
	m.RecordFailure(1, "Timeout")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	result := m.RetryAll(ctx, func(int) error {
		t.Error("fetch must not run after cancellation")
		return nil
	})
	if time.Since(start) > time.Second {
		t.Error("cancelled retry pass should return promptly")
	}
	if result.Succeeded != 0 {
		t.Errorf("unexpected successes: %+v", result)
	}
}

func TestSummary(t *testing.T) {
	m := newTestManager(3)
	m.RecordFailure(1, "Timeout")
	m.RecordFailure(2, "No record found")

	s := m.Summary()
	if s.Total != 2 || s.Retryable != 1 || s.Permanent != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestExponentialBackoffCapsAndGrows(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}

	var prev time.Duration
	for attempt := 1; attempt <= 3; attempt++ {
		d := eb.NextDelay(attempt)
		if d <= prev {
			t.Errorf("delay did not grow at attempt %d: %v <= %v", attempt, d, prev)
		}
		prev = d
	}

	if d := eb.NextDelay(20); d > 10*time.Second {
		t.Errorf("delay %v exceeds cap", d)
	}
	if d := eb.NextDelay(0); d != 0 {
		t.Errorf("attempt 0 should yield no delay, got %v", d)
	}
}

func TestExponentialBackoffJitterStaysPositive(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}
	for i := 0; i < 100; i++ {
		if d := eb.NextDelay(3); d < 0 {
			t.Fatalf("jittered delay went negative: %v", d)
		}
	}
}

func TestWaitCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Wait(ctx, time.Minute)
	if err == nil {
		t.Error("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait did not return promptly on cancellation")
	}
}

func ExampleManager_RetryAll() {
	m := NewManager(3, time.Millisecond, logger.NewNopLogger())
	m.RecordFailure(42, "Timeout")

	result := m.RetryAll(context.Background(), func(khewat int) error {
		return nil // succeeds this time
	})
	fmt.Printf("retried=%d succeeded=%d failed=%d\n", result.Retried, result.Succeeded, result.Failed)
	// Output: retried=1 succeeded=1 failed=0
}
