package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eventforge/internal/config"
	"eventforge/internal/event"
)

func configWithKind(kind string) config.OutputConfig {
	return config.OutputConfig{Kind: kind}
}

func envEmpty() config.Env { return config.Env{} }

func TestBuild_AssignsUniqueIDs(t *testing.T) {
	dir := t.TempDir()
	outs := []config.OutputConfig{
		{Kind: "stdout"},
		{Kind: "file", Path: filepath.Join(dir, "a.jsonl")},
		{Kind: "file", Path: filepath.Join(dir, "b.jsonl")},
	}
	entries, err := Build(outs, envEmpty())
	if err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	defer closeEntries(entries)
	ids := []string{entries[0].ID, entries[1].ID, entries[2].ID}
	want := []string{"stdout", "file", "file-2"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Expected sink id %q, got %q", want[i], ids[i])
		}
	}
}

func TestBuild_UnknownKind(t *testing.T) {
	if _, err := Build([]config.OutputConfig{{Kind: "carrier-pigeon"}}, envEmpty()); err == nil {
		t.Fatal("Expected error for unknown sink kind")
	}
}

func TestBuild_ClosesOnConstructionFailure(t *testing.T) {
	dir := t.TempDir()
	outs := []config.OutputConfig{
		{Kind: "file", Path: filepath.Join(dir, "ok.jsonl")},
		{Kind: "file"}, // missing path fails construction
	}
	if _, err := Build(outs, envEmpty()); err == nil {
		t.Fatal("Expected error from second sink construction")
	}
}

func TestStdoutSink_Formats(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := event.RenderedEvent{PipelineID: "pipe-s", Sequence: 9, Timestamp: ts, Payload: []byte("hello")}

	var raw bytes.Buffer
	s := &StdoutSink{out: &raw, format: "raw", pipelineColors: map[string]string{}}
	if err := s.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver() raw returned error: %v", err)
	}
	if raw.String() != "hello\n" {
		t.Errorf("Expected raw payload line, got %q", raw.String())
	}

	var jsonl bytes.Buffer
	s = &StdoutSink{out: &jsonl, format: "json", pipelineColors: map[string]string{}}
	if err := s.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver() json returned error: %v", err)
	}
	var decoded event.RenderedEvent
	if err := json.Unmarshal(jsonl.Bytes(), &decoded); err != nil {
		t.Fatalf("json format output not decodable: %v", err)
	}
	if decoded.Sequence != 9 {
		t.Errorf("Expected sequence 9 in envelope, got %d", decoded.Sequence)
	}

	var pretty bytes.Buffer
	s = &StdoutSink{out: &pretty, format: "pretty", pipelineColors: map[string]string{}}
	if err := s.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver() pretty returned error: %v", err)
	}
	if !strings.Contains(pretty.String(), "pipe-s#9") || !strings.Contains(pretty.String(), "hello") {
		t.Errorf("Unexpected pretty output: %q", pretty.String())
	}
}

func TestStdoutSink_StablePipelineColors(t *testing.T) {
	var buf bytes.Buffer
	s := &StdoutSink{out: &buf, format: "pretty", pipelineColors: map[string]string{}}
	c1 := s.pipelineColor("a")
	c2 := s.pipelineColor("b")
	if c1 == c2 {
		t.Errorf("Expected distinct colors for distinct pipelines")
	}
	if s.pipelineColor("a") != c1 {
		t.Errorf("Expected stable color assignment per pipeline")
	}
}

func TestSplitGreptimeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		host     string
		port     int
	}{
		{"greptime.example.com:4002", "greptime.example.com", 4002},
		{"greptime.example.com", "greptime.example.com", greptimeDefaultPort},
		{"127.0.0.1:4001", "127.0.0.1", 4001},
		{"greptime.example.com:grpc", "greptime.example.com", greptimeDefaultPort},
	}
	for _, tt := range tests {
		host, port := splitGreptimeEndpoint(tt.endpoint)
		if host != tt.host || port != tt.port {
			t.Errorf("splitGreptimeEndpoint(%q) = %q, %d; want %q, %d",
				tt.endpoint, host, port, tt.host, tt.port)
		}
	}
}

func TestStdoutSink_RejectsUnknownFormat(t *testing.T) {
	if _, err := newStdoutSink(config.OutputConfig{Kind: "stdout", Format: "yaml"}, envEmpty()); err == nil {
		t.Fatal("Expected error for unknown stdout format")
	}
}
