// Package sink provides the built-in output plugins. Sink kinds are
// registered at startup and built per pipeline from configuration.
package sink

import (
	"fmt"

	"eventforge/internal/config"
	"eventforge/internal/dispatch"
)

// Factory builds a sink from its output configuration.
type Factory func(cfg config.OutputConfig, env config.Env) (dispatch.Sink, error)

var sinks = map[string]Factory{}

// Register adds a sink kind to the registry.
func Register(kind string, f Factory) {
	if _, ok := sinks[kind]; ok {
		panic("sink: duplicate sink kind " + kind)
	}
	sinks[kind] = f
}

// Build constructs dispatcher entries for every configured output.
// Sink ids are derived from the kind, suffixed when a kind repeats.
func Build(outs []config.OutputConfig, env config.Env) ([]dispatch.Entry, error) {
	entries := make([]dispatch.Entry, 0, len(outs))
	counts := make(map[string]int, len(outs))
	for _, out := range outs {
		f, ok := sinks[out.Kind]
		if !ok {
			return nil, &config.ConfigError{Field: "outputs.kind", Msg: "unknown sink kind " + out.Kind}
		}
		s, err := f(out, env)
		if err != nil {
			closeEntries(entries)
			return nil, err
		}
		id := out.Kind
		counts[out.Kind]++
		if n := counts[out.Kind]; n > 1 {
			id = fmt.Sprintf("%s-%d", out.Kind, n)
		}
		entries = append(entries, dispatch.Entry{ID: id, Sink: s, Retry: out.Retry})
	}
	return entries, nil
}

func closeEntries(entries []dispatch.Entry) {
	for _, e := range entries {
		_ = e.Sink.Close()
	}
}

func init() {
	Register("stdout", newStdoutSink)
	Register("file", newFileSink)
	Register("greptime", newGreptimeSink)
	Register("mqtt", newMQTTSink)
	Register("http", newHTTPSink)
}
