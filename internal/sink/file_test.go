package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"eventforge/internal/event"
)

func TestFileSink_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	s, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink() returned error: %v", err)
	}

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := event.RenderedEvent{
			PipelineID: "pipe-f",
			Sequence:   uint64(i),
			Timestamp:  ts.Add(time.Duration(i) * time.Second),
			Payload:    []byte(`{"n":1}`),
		}
		if err := s.Deliver(context.Background(), ev); err != nil {
			t.Fatalf("Deliver() returned error: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var got []event.RenderedEvent
	for {
		var ev event.RenderedEvent
		if err := dec.Decode(&ev); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode written line: %v", err)
		}
		got = append(got, ev)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 events in file, got %d", len(got))
	}
	for i, ev := range got {
		if ev.Sequence != uint64(i) || ev.PipelineID != "pipe-f" {
			t.Errorf("Unexpected event %d: %+v", i, ev)
		}
	}
}

func TestFileSink_DeliverBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.jsonl")
	s, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink() returned error: %v", err)
	}
	evs := []event.RenderedEvent{
		{PipelineID: "p", Sequence: 0, Timestamp: time.Now(), Payload: []byte("a")},
		{PipelineID: "p", Sequence: 1, Timestamp: time.Now(), Payload: []byte("b")},
	}
	if err := s.DeliverBatch(context.Background(), evs); err != nil {
		t.Fatalf("DeliverBatch() returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Expected batch content in file")
	}
}

func TestFileSink_RequiresPath(t *testing.T) {
	if _, err := newFileSink(configWithKind("file"), envEmpty()); err == nil {
		t.Fatal("Expected error for file sink without path")
	}
}
