// Package dispatch fans rendered events out to the configured sinks.
// Sinks are independent: one sink failing or stalling never blocks
// delivery to the others, and every event reaches a terminal outcome
// per sink (success, or failure after retries are exhausted).
package dispatch

import (
	"context"
	"sync"
	"time"

	"eventforge/internal/config"
	"eventforge/internal/event"
	"eventforge/internal/logging"
)

// Sink is the output plugin contract. Deliver performs one attempt;
// retries are owned by the dispatcher.
type Sink interface {
	Deliver(ctx context.Context, ev event.RenderedEvent) error
	Close() error
}

// BatchSink is an optional capability for sinks that accept many
// events in one call. The replay path uses it when present.
type BatchSink interface {
	DeliverBatch(ctx context.Context, evs []event.RenderedEvent) error
}

// Outcome is the terminal per-sink result for one event.
type Outcome struct {
	SinkID  string
	Success bool
	Err     error
	Attempt int
}

// Entry couples a sink with its retry policy.
type Entry struct {
	ID    string
	Sink  Sink
	Retry config.RetryConfig
}

// Dispatcher owns the sink set of one pipeline.
type Dispatcher struct {
	entries []Entry
}

// New creates a dispatcher over the given sinks.
func New(entries []Entry) *Dispatcher {
	return &Dispatcher{entries: entries}
}

// SinkIDs returns the ids of all configured sinks.
func (d *Dispatcher) SinkIDs() []string {
	ids := make([]string, len(d.entries))
	for i, e := range d.entries {
		ids[i] = e.ID
	}
	return ids
}

// Submit delivers ev to every sink concurrently and returns a channel
// that yields the aggregated outcomes exactly once, after every sink
// has reached a terminal outcome. Cancelling ctx abandons outstanding
// attempts; their outcomes are recorded as failed.
func (d *Dispatcher) Submit(ctx context.Context, ev event.RenderedEvent) <-chan []Outcome {
	done := make(chan []Outcome, 1)
	outcomes := make([]Outcome, len(d.entries))
	var wg sync.WaitGroup
	wg.Add(len(d.entries))
	for i, e := range d.entries {
		go func(i int, e Entry) {
			defer wg.Done()
			outcomes[i] = deliverWithRetry(ctx, e, ev)
		}(i, e)
	}
	go func() {
		wg.Wait()
		for _, o := range outcomes {
			if !o.Success {
				logging.FromContext(ctx).Warn("delivery failed",
					"pipeline", ev.PipelineID, "sink", o.SinkID,
					"sequence", ev.Sequence, "attempts", o.Attempt, "err", o.Err)
			}
		}
		done <- outcomes
	}()
	return done
}

// Broadcast delivers a batch synchronously to every sink, using the
// batch capability where a sink offers it. Used by replay.
func (d *Dispatcher) Broadcast(ctx context.Context, evs []event.RenderedEvent) []Outcome {
	outcomes := make([]Outcome, len(d.entries))
	for i, e := range d.entries {
		outcomes[i] = Outcome{SinkID: e.ID, Success: true, Attempt: 1}
		var err error
		if bs, ok := e.Sink.(BatchSink); ok {
			err = bs.DeliverBatch(ctx, evs)
		} else {
			for _, ev := range evs {
				if err = e.Sink.Deliver(ctx, ev); err != nil {
					break
				}
			}
		}
		if err != nil {
			outcomes[i].Success = false
			outcomes[i].Err = err
		}
	}
	return outcomes
}

// Close closes every sink, returning the first error encountered.
func (d *Dispatcher) Close() error {
	var first error
	for _, e := range d.entries {
		if err := e.Sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// deliverWithRetry runs bounded attempts with exponential backoff and
// a per-attempt timeout. The returned outcome is always terminal.
func deliverWithRetry(ctx context.Context, e Entry, ev event.RenderedEvent) Outcome {
	out := Outcome{SinkID: e.ID}
	backoff := e.Retry.Backoff.Std()
	for attempt := 1; attempt <= e.Retry.Attempts; attempt++ {
		out.Attempt = attempt
		attemptCtx, cancel := context.WithTimeout(ctx, e.Retry.Timeout.Std())
		err := e.Sink.Deliver(attemptCtx, ev)
		cancel()
		if err == nil {
			out.Success = true
			out.Err = nil
			return out
		}
		out.Err = err
		if ctx.Err() != nil || attempt == e.Retry.Attempts {
			return out
		}
		if !sleep(ctx, backoff) {
			return out
		}
		backoff *= 2
	}
	return out
}

// sleep waits d or until ctx is cancelled; it reports whether the
// full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
