package ratelimit

import (
	"testing"
	"time"
)

func TestDelayStaysWithinBounds(t *testing.T) {
	min := 1 * time.Second
	max := 5 * time.Second
	a := NewAdaptive(min, max, 10)

	// Hammer with every class of response; delay must never leave [min, max]
	statuses := []int{429, 500, 503, 200, 429, 429, 502, 200, 204, 404, 429, 500, 200}
	for i := 0; i < 10; i++ {
		for _, status := range statuses {
			a.RecordResponse(status, 100*time.Millisecond)
			s := a.Stats()
			if s.CurrentDelay < min || s.CurrentDelay > max {
				t.Fatalf("delay %v escaped bounds [%v, %v] after status %d", s.CurrentDelay, min, max, status)
			}
		}
	}
}

func TestRateLimitBackoffGrowsExponentially(t *testing.T) {
	a := NewAdaptive(time.Second, 5*time.Second, 10)

	var offsets []time.Duration
	for i := 0; i < 3; i++ {
		before := time.Now()
		a.RecordResponse(429, 0)
		offsets = append(offsets, a.Stats().BackoffUntil.Sub(before))
	}

	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Errorf("backoff offset %d (%v) did not grow over %v", i, offsets[i], offsets[i-1])
		}
	}

	// After many consecutive 429s the window must cap at 60s
	for i := 0; i < 10; i++ {
		a.RecordResponse(429, 0)
	}
	before := time.Now()
	a.RecordResponse(429, 0)
	offset := a.Stats().BackoffUntil.Sub(before)
	if offset > 61*time.Second {
		t.Errorf("backoff window %v exceeds the 60s cap", offset)
	}
}

func TestRateLimitDoublesDelay(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 10)

	a.RecordResponse(429, 0)
	if got := a.Stats().CurrentDelay; got != 2*time.Second {
		t.Errorf("expected delay doubled to 2s, got %v", got)
	}
	a.RecordResponse(429, 0)
	if got := a.Stats().CurrentDelay; got != 4*time.Second {
		t.Errorf("expected delay doubled to 4s, got %v", got)
	}
}

func TestServerErrorGrowsDelayWithoutBackoffWindow(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 10)

	a.RecordResponse(500, 0)
	s := a.Stats()
	if s.CurrentDelay != 1500*time.Millisecond {
		t.Errorf("expected delay 1.5s after 5xx, got %v", s.CurrentDelay)
	}
	if !s.BackoffUntil.IsZero() {
		t.Error("5xx must not open a hard backoff window")
	}
	if s.ErrorCount != 1 {
		t.Errorf("expected error count 1, got %d", s.ErrorCount)
	}
}

func TestSuccessDecaysDelayWhenWindowFullAndFast(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 3)

	// Push delay up first
	a.RecordResponse(500, 0)
	a.RecordResponse(500, 0)
	grown := a.Stats().CurrentDelay

	// Two successes clear the error counter, third fills window
	for i := 0; i < 3; i++ {
		a.RecordResponse(200, 100*time.Millisecond)
	}

	if got := a.Stats().CurrentDelay; got >= grown {
		t.Errorf("expected delay to decay below %v, got %v", grown, got)
	}
}

func TestSuccessDoesNotDecayWithSlowWindow(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 3)
	a.RecordResponse(500, 0)
	grown := a.Stats().CurrentDelay

	// Slow responses (>= 1s average) must not shrink the delay
	for i := 0; i < 5; i++ {
		a.RecordResponse(200, 2*time.Second)
	}

	if got := a.Stats().CurrentDelay; got != grown {
		t.Errorf("expected delay to hold at %v with slow responses, got %v", grown, got)
	}
}

func TestClientErrorsAreNeutral(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 10)
	a.RecordResponse(404, 50*time.Millisecond)
	a.RecordResponse(400, 50*time.Millisecond)

	s := a.Stats()
	if s.CurrentDelay != time.Second || s.ErrorCount != 0 || s.AvgLatency != 0 {
		t.Errorf("4xx responses must not change state: %+v", s)
	}
}

func TestErrorCountFloorsAtZero(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 10)
	for i := 0; i < 5; i++ {
		a.RecordResponse(200, 10*time.Millisecond)
	}
	if got := a.Stats().ErrorCount; got != 0 {
		t.Errorf("error count went negative: %d", got)
	}
}

func TestStatsAvgLatency(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 10)
	if got := a.Stats().AvgLatency; got != 0 {
		t.Errorf("empty window should report 0 latency, got %v", got)
	}

	a.RecordResponse(200, 100*time.Millisecond)
	a.RecordResponse(200, 300*time.Millisecond)
	if got := a.Stats().AvgLatency; got != 200*time.Millisecond {
		t.Errorf("expected 200ms average, got %v", got)
	}
}

func TestWaitRespectsDelay(t *testing.T) {
	a := NewAdaptive(50*time.Millisecond, time.Second, 10)

	a.Wait() // first call, no prior request
	start := time.Now()
	a.Wait()
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second wait returned after %v, expected ~50ms", elapsed)
	}
}

func TestReset(t *testing.T) {
	a := NewAdaptive(time.Second, 10*time.Second, 10)
	a.RecordResponse(429, 0)
	a.RecordResponse(500, 100*time.Millisecond)

	a.Reset()
	s := a.Stats()
	if s.CurrentDelay != time.Second || s.ErrorCount != 0 || !s.BackoffUntil.IsZero() {
		t.Errorf("reset did not restore initial state: %+v", s)
	}
}
