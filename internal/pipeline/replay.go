package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"eventforge/internal/dispatch"
	"eventforge/internal/event"
)

// ReplayLog re-emits captured events from r to the dispatcher. A
// speed > 0 preserves the recorded inter-event gaps scaled by speed;
// speed <= 0 replays without delay. Events are sent in batches via
// the sinks' batch capability where available.
func ReplayLog(ctx context.Context, r io.Reader, d *dispatch.Dispatcher, speed float64, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1
	}
	dec := json.NewDecoder(r)
	var prev time.Time
	batch := make([]event.RenderedEvent, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		for _, o := range d.Broadcast(ctx, batch) {
			if !o.Success {
				return fmt.Errorf("replay to sink %s: %w", o.SinkID, o.Err)
			}
		}
		batch = batch[:0]
		return nil
	}

	for {
		var ev event.RenderedEvent
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				return flush()
			}
			return err
		}
		if !prev.IsZero() && speed > 0 {
			diff := ev.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				if err := waitFor(ctx, diff); err != nil {
					return err
				}
			}
		}
		prev = ev.Timestamp
		batch = append(batch, ev)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// ReplayLogFile opens a JSONL event log and replays it.
func ReplayLogFile(ctx context.Context, path string, d *dispatch.Dispatcher, speed float64, batchSize int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, d, speed, batchSize)
}
