// Package render turns scheduled ticks into event payloads. Renderer
// kinds are plugins registered at startup; a render failure is
// recoverable and must never abort the tick stream.
package render

import (
	"eventforge/internal/config"
	"eventforge/internal/event"
	"eventforge/internal/schedule"
)

// Context carries the per-pipeline data available to every render
// call. It is fixed for the lifetime of one pipeline run.
type Context struct {
	PipelineID string
	RunID      string
	Fields     map[string]string
}

// Renderer is the content plugin contract. Render is pure with
// respect to tick and context; the executor never re-renders a tick.
type Renderer interface {
	Render(tick schedule.ScheduledTick, rctx Context) (event.RenderedEvent, error)
}

// Factory builds a Renderer from its configuration.
type Factory func(cfg config.RenderConfig) (Renderer, error)

var renderers = map[string]Factory{}

// Register adds a renderer kind to the registry.
func Register(kind string, f Factory) {
	if _, ok := renderers[kind]; ok {
		panic("render: duplicate renderer kind " + kind)
	}
	renderers[kind] = f
}

// New constructs the renderer named by cfg.Kind.
func New(cfg config.RenderConfig) (Renderer, error) {
	f, ok := renderers[cfg.Kind]
	if !ok {
		return nil, &config.ConfigError{Field: "render.kind", Msg: "unknown renderer kind " + cfg.Kind}
	}
	return f(cfg)
}

func init() {
	Register("template", newTemplateRenderer)
	Register("json", newJSONRenderer)
}
