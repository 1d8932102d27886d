// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// InputConfig selects a time-pattern kind and its parameters.
// Exactly one kind is active; unused fields stay zero.
type InputConfig struct {
	Kind       string      `yaml:"kind"`
	Interval   Duration    `yaml:"interval,omitempty"`
	Count      int         `yaml:"count,omitempty"`
	Start      time.Time   `yaml:"start,omitempty"`
	Spread     Duration    `yaml:"spread,omitempty"`
	Timestamps []time.Time `yaml:"timestamps,omitempty"`
}

// RenderConfig selects a renderer kind and its parameters.
type RenderConfig struct {
	Kind     string            `yaml:"kind"`
	Template string            `yaml:"template,omitempty"`
	Fields   map[string]string `yaml:"fields,omitempty"`
}

// RetryConfig bounds delivery attempts for one sink.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Backoff  Duration `yaml:"backoff"`
	Timeout  Duration `yaml:"timeout"`
}

// OutputConfig selects a sink kind and its parameters.
type OutputConfig struct {
	Kind     string            `yaml:"kind"`
	Format   string            `yaml:"format,omitempty"`
	Path     string            `yaml:"path,omitempty"`
	Endpoint string            `yaml:"endpoint,omitempty"`
	Database string            `yaml:"database,omitempty"`
	Table    string            `yaml:"table,omitempty"`
	Broker   string            `yaml:"broker,omitempty"`
	Topic    string            `yaml:"topic,omitempty"`
	QoS      int               `yaml:"qos,omitempty"`
	URL      string            `yaml:"url,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Retry    RetryConfig       `yaml:"retry,omitempty"`
}

// PacingConfig controls how scheduled ticks map onto wall-clock time.
type PacingConfig struct {
	TimeMode     string   `yaml:"time_mode"` // live | sample
	Speed        float64  `yaml:"speed"`
	LagPolicy    string   `yaml:"lag_policy"` // catchup | drop
	LagThreshold Duration `yaml:"lag_threshold"`
}

// BreakerConfig bounds consecutive render failures before a pipeline fails.
type BreakerConfig struct {
	Threshold int      `yaml:"threshold"`
	Window    Duration `yaml:"window"`
	Warn      int      `yaml:"warn"`
}

// RestartConfig is the supervisor's failure policy for one pipeline.
type RestartConfig struct {
	Policy      string   `yaml:"policy"` // none | limited | always
	Max         int      `yaml:"max,omitempty"`
	Backoff     Duration `yaml:"backoff"`
	MinInterval Duration `yaml:"min_interval"`
}

// PipelineConfig is the immutable configuration of one pipeline.
type PipelineConfig struct {
	Name         string         `yaml:"name"`
	Input        InputConfig    `yaml:"input"`
	Render       RenderConfig   `yaml:"render"`
	Outputs      []OutputConfig `yaml:"outputs"`
	Pacing       PacingConfig   `yaml:"pacing"`
	Window       int            `yaml:"window"`
	Breaker      BreakerConfig  `yaml:"breaker"`
	Restart      RestartConfig  `yaml:"restart"`
	DrainTimeout Duration       `yaml:"drain_timeout"`
}

// RuntimeConfig is the root configuration for all pipelines.
type RuntimeConfig struct {
	Pipelines []PipelineConfig `yaml:"pipelines"`
}

// Load loads YAML config, validates it against the CUE schema if
// schemaPath is non-empty, applies defaults and runs semantic checks.
func Load(configPath, schemaPath string) (*RuntimeConfig, error) {
	if schemaPath != "" {
		if err := ValidateWithCue(configPath, schemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with runtime defaults.
func (c *RuntimeConfig) ApplyDefaults() {
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.Window <= 0 {
			p.Window = 64
		}
		if p.Pacing.TimeMode == "" {
			p.Pacing.TimeMode = "live"
		}
		if p.Pacing.Speed <= 0 {
			p.Pacing.Speed = 1
		}
		if p.Pacing.LagPolicy == "" {
			p.Pacing.LagPolicy = "catchup"
		}
		if p.Pacing.LagThreshold <= 0 {
			p.Pacing.LagThreshold = Duration(100 * time.Millisecond)
		}
		if p.Breaker.Threshold <= 0 {
			p.Breaker.Threshold = 10
		}
		if p.Breaker.Window <= 0 {
			p.Breaker.Window = Duration(30 * time.Second)
		}
		if p.Breaker.Warn <= 0 {
			p.Breaker.Warn = (p.Breaker.Threshold + 1) / 2
		}
		if p.Restart.Policy == "" {
			p.Restart.Policy = "none"
		}
		if p.Restart.Backoff <= 0 {
			p.Restart.Backoff = Duration(time.Second)
		}
		if p.Restart.MinInterval <= 0 {
			p.Restart.MinInterval = Duration(5 * time.Second)
		}
		if p.DrainTimeout <= 0 {
			p.DrainTimeout = Duration(10 * time.Second)
		}
		for j := range p.Outputs {
			r := &p.Outputs[j].Retry
			if r.Attempts <= 0 {
				r.Attempts = 3
			}
			if r.Backoff <= 0 {
				r.Backoff = Duration(200 * time.Millisecond)
			}
			if r.Timeout <= 0 {
				r.Timeout = Duration(5 * time.Second)
			}
		}
	}
}
