package schedule

import (
	"eventforge/internal/config"
)

// Factory builds a Pattern from its input configuration.
type Factory func(cfg config.InputConfig) (Pattern, error)

var patterns = map[string]Factory{}

// Register adds a pattern kind to the registry. Built-in kinds are
// registered at package init; calling Register twice for the same
// kind panics.
func Register(kind string, f Factory) {
	if _, ok := patterns[kind]; ok {
		panic("schedule: duplicate pattern kind " + kind)
	}
	patterns[kind] = f
}

// New constructs the pattern named by cfg.Kind.
func New(cfg config.InputConfig) (Pattern, error) {
	f, ok := patterns[cfg.Kind]
	if !ok {
		return nil, &config.ConfigError{Field: "input.kind", Msg: "unknown pattern kind " + cfg.Kind}
	}
	return f(cfg)
}

func init() {
	Register("interval", newIntervalPattern)
	Register("timestamps", newTimestampsPattern)
	Register("jitter", newJitterPattern)
}
