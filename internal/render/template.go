package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/google/uuid"

	"eventforge/internal/config"
	"eventforge/internal/event"
	"eventforge/internal/schedule"
)

// templateData is the root object visible inside payload templates.
type templateData struct {
	Timestamp time.Time
	Sequence  uint64
	Pipeline  string
	Run       string
	Fields    map[string]string
}

var templateFuncs = template.FuncMap{
	"uuid": uuid.NewString,
	"unix": func(t time.Time) int64 { return t.Unix() },
	"rfc3339": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339Nano)
	},
}

// templateRenderer renders payloads through a Go text template.
type templateRenderer struct {
	tpl *template.Template
}

func newTemplateRenderer(cfg config.RenderConfig) (Renderer, error) {
	if cfg.Template == "" {
		return nil, &config.ConfigError{Field: "render.template", Msg: "template body is required"}
	}
	tpl, err := template.New("payload").Funcs(templateFuncs).Parse(cfg.Template)
	if err != nil {
		return nil, &config.ConfigError{Field: "render.template", Msg: err.Error()}
	}
	return &templateRenderer{tpl: tpl}, nil
}

func (r *templateRenderer) Render(tick schedule.ScheduledTick, rctx Context) (event.RenderedEvent, error) {
	var buf bytes.Buffer
	data := templateData{
		Timestamp: tick.Timestamp,
		Sequence:  tick.Sequence,
		Pipeline:  rctx.PipelineID,
		Run:       rctx.RunID,
		Fields:    rctx.Fields,
	}
	if err := r.tpl.Execute(&buf, data); err != nil {
		return event.RenderedEvent{}, fmt.Errorf("render tick %d: %w", tick.Sequence, err)
	}
	return event.RenderedEvent{
		PipelineID: rctx.PipelineID,
		Sequence:   tick.Sequence,
		Timestamp:  tick.Timestamp,
		Payload:    buf.Bytes(),
	}, nil
}

// jsonRenderer emits one JSON object per tick with the configured
// static fields inlined.
type jsonRenderer struct {
	fields map[string]string
}

func newJSONRenderer(cfg config.RenderConfig) (Renderer, error) {
	return &jsonRenderer{fields: cfg.Fields}, nil
}

func (r *jsonRenderer) Render(tick schedule.ScheduledTick, rctx Context) (event.RenderedEvent, error) {
	obj := map[string]any{
		"timestamp": tick.Timestamp.UTC().Format(time.RFC3339Nano),
		"sequence":  tick.Sequence,
		"pipeline":  rctx.PipelineID,
	}
	for k, v := range r.fields {
		obj[k] = v
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return event.RenderedEvent{}, fmt.Errorf("render tick %d: %w", tick.Sequence, err)
	}
	return event.RenderedEvent{
		PipelineID: rctx.PipelineID,
		Sequence:   tick.Sequence,
		Timestamp:  tick.Timestamp,
		Payload:    payload,
	}, nil
}
