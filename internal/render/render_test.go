package render

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"eventforge/internal/config"
	"eventforge/internal/schedule"
)

func TestTemplateRenderer_RendersPayload(t *testing.T) {
	r, err := New(config.RenderConfig{
		Kind:     "template",
		Template: `{{ .Pipeline }} #{{ .Sequence }} at {{ unix .Timestamp }} src={{ .Fields.source }}`,
	})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev, err := r.Render(
		schedule.ScheduledTick{Timestamp: ts, Sequence: 7},
		Context{PipelineID: "pipe-a", RunID: "run-1", Fields: map[string]string{"source": "web"}},
	)
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	want := "pipe-a #7 at 1767225600 src=web"
	if string(ev.Payload) != want {
		t.Errorf("Expected payload %q, got %q", want, ev.Payload)
	}
	if ev.PipelineID != "pipe-a" || ev.Sequence != 7 || !ev.Timestamp.Equal(ts) {
		t.Errorf("Unexpected event envelope: %+v", ev)
	}
}

func TestTemplateRenderer_ParseErrorIsConfigError(t *testing.T) {
	_, err := New(config.RenderConfig{Kind: "template", Template: "{{ broken"})
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ConfigError for unparsable template, got %v", err)
	}
}

func TestTemplateRenderer_EmptyTemplateRejected(t *testing.T) {
	if _, err := New(config.RenderConfig{Kind: "template"}); err == nil {
		t.Fatal("Expected error for empty template body")
	}
}

func TestTemplateRenderer_ExecErrorIsRecoverable(t *testing.T) {
	r, err := New(config.RenderConfig{Kind: "template", Template: "{{ .Nope }}"})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	_, err = r.Render(schedule.ScheduledTick{Timestamp: time.Now(), Sequence: 3}, Context{PipelineID: "p"})
	if err == nil {
		t.Fatal("Expected render error for unknown field")
	}
	var cerr *config.ConfigError
	if errors.As(err, &cerr) {
		t.Errorf("Render error must not be a config error: %v", err)
	}
}

func TestJSONRenderer_IncludesStaticFields(t *testing.T) {
	r, err := New(config.RenderConfig{Kind: "json", Fields: map[string]string{"site": "plant-a"}})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ev, err := r.Render(schedule.ScheduledTick{Timestamp: ts, Sequence: 42}, Context{PipelineID: "pipe-j"})
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(ev.Payload, &obj); err != nil {
		t.Fatalf("Payload is not valid JSON: %v", err)
	}
	if obj["pipeline"] != "pipe-j" || obj["site"] != "plant-a" {
		t.Errorf("Unexpected payload fields: %v", obj)
	}
	if obj["sequence"].(float64) != 42 {
		t.Errorf("Expected sequence 42, got %v", obj["sequence"])
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(config.RenderConfig{Kind: "xml"})
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ConfigError for unknown kind, got %v", err)
	}
}
