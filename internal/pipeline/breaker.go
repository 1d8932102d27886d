package pipeline

import (
	"time"

	"eventforge/internal/config"
)

// breaker trips a pipeline after N consecutive render failures inside
// the observation window. Any success resets the streak.
type breaker struct {
	threshold int
	window    time.Duration
	count     int
	first     time.Time
}

func newBreaker(cfg config.BreakerConfig) *breaker {
	return &breaker{threshold: cfg.Threshold, window: cfg.Window.Std()}
}

// fail records one failure at now and reports whether the breaker
// tripped. A streak older than the window starts over.
func (b *breaker) fail(now time.Time) bool {
	if b.count == 0 || now.Sub(b.first) > b.window {
		b.count = 0
		b.first = now
	}
	b.count++
	return b.count >= b.threshold
}

// ok resets the streak.
func (b *breaker) ok() { b.count = 0 }

// streak returns the current consecutive-failure count.
func (b *breaker) streak() int { return b.count }
