// StdoutSink prints rendered events to STDOUT, optionally colorized.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"eventforge/internal/config"
	"eventforge/internal/dispatch"
	"eventforge/internal/event"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var pipelinePalette = []string{colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan, colorRed}

// StdoutSink writes events to an io.Writer. Format "raw" emits the
// payload only, "json" a JSONL envelope, "pretty" a colorized line.
type StdoutSink struct {
	out    io.Writer
	format string

	mu             sync.Mutex
	pipelineColors map[string]string
	colorIdx       int
}

func newStdoutSink(cfg config.OutputConfig, _ config.Env) (dispatch.Sink, error) {
	format := cfg.Format
	if format == "" {
		format = "raw"
	}
	switch format {
	case "raw", "json", "pretty":
	default:
		return nil, &config.ConfigError{Field: "outputs.format", Msg: "must be raw, json or pretty"}
	}
	return &StdoutSink{out: os.Stdout, format: format, pipelineColors: make(map[string]string)}, nil
}

// Deliver implements dispatch.Sink.
func (s *StdoutSink) Deliver(_ context.Context, ev event.RenderedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.format {
	case "json":
		return json.NewEncoder(s.out).Encode(ev)
	case "pretty":
		c := s.pipelineColor(ev.PipelineID)
		_, err := fmt.Fprintf(s.out, "%s[%s]%s %s%s#%d%s %s\n",
			colorGray, ev.Timestamp.Format(time.RFC3339), colorReset,
			c, ev.PipelineID, ev.Sequence, colorReset,
			ev.Payload)
		return err
	default:
		_, err := fmt.Fprintf(s.out, "%s\n", ev.Payload)
		return err
	}
}

// Close implements dispatch.Sink.
func (s *StdoutSink) Close() error { return nil }

func (s *StdoutSink) pipelineColor(id string) string {
	if c, ok := s.pipelineColors[id]; ok {
		return c
	}
	c := pipelinePalette[s.colorIdx%len(pipelinePalette)]
	s.pipelineColors[id] = c
	s.colorIdx++
	return c
}
