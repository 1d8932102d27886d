package pipeline

import (
	"testing"
	"time"

	"eventforge/internal/config"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := newBreaker(config.BreakerConfig{Threshold: 3, Window: config.Duration(time.Second)})
	t0 := time.Now()
	if b.fail(t0) {
		t.Error("Breaker tripped after 1 failure")
	}
	if b.fail(t0.Add(10 * time.Millisecond)) {
		t.Error("Breaker tripped after 2 failures")
	}
	if !b.fail(t0.Add(20 * time.Millisecond)) {
		t.Error("Breaker did not trip at the 3rd consecutive failure")
	}
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	b := newBreaker(config.BreakerConfig{Threshold: 2, Window: config.Duration(time.Second)})
	t0 := time.Now()
	b.fail(t0)
	b.ok()
	if b.streak() != 0 {
		t.Errorf("Expected streak 0 after success, got %d", b.streak())
	}
	if b.fail(t0.Add(time.Millisecond)) {
		t.Error("Breaker tripped although the streak was reset")
	}
}

func TestBreaker_WindowExpiryRestartsStreak(t *testing.T) {
	b := newBreaker(config.BreakerConfig{Threshold: 3, Window: config.Duration(100 * time.Millisecond)})
	t0 := time.Now()
	b.fail(t0)
	b.fail(t0.Add(10 * time.Millisecond))
	// Outside the window: this failure starts a fresh streak.
	if b.fail(t0.Add(150 * time.Millisecond)) {
		t.Error("Breaker tripped across an expired window")
	}
	if b.streak() != 1 {
		t.Errorf("Expected restarted streak of 1, got %d", b.streak())
	}
}
