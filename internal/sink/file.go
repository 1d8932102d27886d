package sink

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"eventforge/internal/config"
	"eventforge/internal/dispatch"
	"eventforge/internal/event"
)

// FileSink appends rendered events to a JSONL file. The file format
// matches what the replay command reads back.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func newFileSink(cfg config.OutputConfig, _ config.Env) (dispatch.Sink, error) {
	if cfg.Path == "" {
		return nil, &config.ConfigError{Field: "outputs.path", Msg: "file sink requires a path"}
	}
	return NewFileSink(cfg.Path)
}

// NewFileSink creates or truncates the JSONL file at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Deliver implements dispatch.Sink.
func (s *FileSink) Deliver(_ context.Context, ev event.RenderedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(ev)
}

// DeliverBatch implements dispatch.BatchSink.
func (s *FileSink) DeliverBatch(_ context.Context, evs []event.RenderedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range evs {
		if err := s.enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

// Close implements dispatch.Sink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
