package pipeline

import (
	"context"
	"time"

	"eventforge/internal/config"
)

// Clock abstracts "now" so the pacing loop is identical across real,
// accelerated and instant time. WaitUntil must be a non-busy,
// cancellable wait: a stop signal preempts it immediately.
type Clock interface {
	Now() time.Time
	WaitUntil(ctx context.Context, t time.Time) error
}

// NewClock selects the clock for the configured pacing mode.
func NewClock(p config.PacingConfig) Clock {
	if p.TimeMode == "sample" {
		return &instantClock{}
	}
	if p.Speed != 1 {
		return newScaledClock(p.Speed)
	}
	return realClock{}
}

// realClock paces against the wall clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) WaitUntil(ctx context.Context, t time.Time) error {
	return waitFor(ctx, time.Until(t))
}

// scaledClock runs a virtual clock anchored at construction time and
// advancing at a speed multiple of the wall clock.
type scaledClock struct {
	anchorReal time.Time
	anchorVirt time.Time
	speed      float64
}

func newScaledClock(speed float64) *scaledClock {
	now := time.Now()
	return &scaledClock{anchorReal: now, anchorVirt: now, speed: speed}
}

func (c *scaledClock) Now() time.Time {
	elapsed := time.Since(c.anchorReal)
	return c.anchorVirt.Add(time.Duration(float64(elapsed) * c.speed))
}

func (c *scaledClock) WaitUntil(ctx context.Context, t time.Time) error {
	virt := t.Sub(c.Now())
	return waitFor(ctx, time.Duration(float64(virt)/c.speed))
}

// instantClock replays as fast as possible: waiting is free and "now"
// tracks the last awaited timestamp, so no tick ever looks overdue.
type instantClock struct {
	cursor time.Time
}

func (c *instantClock) Now() time.Time {
	if c.cursor.IsZero() {
		return time.Time{}
	}
	return c.cursor
}

func (c *instantClock) WaitUntil(_ context.Context, t time.Time) error {
	c.cursor = t
	return nil
}

// waitFor sleeps d or returns ctx.Err() as soon as ctx is cancelled.
func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
