// CUE schema validation and semantic checks
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

// ConfigError reports an invalid pipeline configuration. It is
// surfaced synchronously before any pipeline reaches Starting.
type ConfigError struct {
	Pipeline string
	Field    string
	Msg      string
}

func (e *ConfigError) Error() string {
	if e.Pipeline == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("config: pipeline %q: %s: %s", e.Pipeline, e.Field, e.Msg)
}

// ValidateWithCue validates a YAML configuration file using a CUE schema file.
func ValidateWithCue(configFile, cueFile string) error {
	ctx := cuecontext.New()

	yamlBytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	configAST, err := yaml.Extract(configFile, yamlBytes)
	if err != nil {
		return fmt.Errorf("cannot parse YAML config: %w", err)
	}
	configVal := ctx.BuildFile(configAST)
	if configVal.Err() != nil {
		return fmt.Errorf("cannot build YAML config: %w", configVal.Err())
	}

	schemaBytes, err := os.ReadFile(cueFile)
	if err != nil {
		return fmt.Errorf("cannot read CUE schema: %w", err)
	}
	schemaVal := ctx.CompileBytes(schemaBytes)
	if schemaVal.Err() != nil {
		return fmt.Errorf("cannot compile CUE schema: %w", schemaVal.Err())
	}

	final := configVal.Unify(schemaVal)
	if final.Err() != nil {
		return fmt.Errorf("schema unify failed: %w", final.Err())
	}
	if err := final.Validate(); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Validate runs semantic checks that the CUE schema cannot express.
func (c *RuntimeConfig) Validate() error {
	if len(c.Pipelines) == 0 {
		return &ConfigError{Field: "pipelines", Msg: "no pipelines defined"}
	}
	seen := make(map[string]bool, len(c.Pipelines))
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.Name == "" {
			return &ConfigError{Field: "name", Msg: "pipeline name is required"}
		}
		if seen[p.Name] {
			return &ConfigError{Pipeline: p.Name, Field: "name", Msg: "duplicate pipeline name"}
		}
		seen[p.Name] = true
		if p.Input.Kind == "" {
			return &ConfigError{Pipeline: p.Name, Field: "input.kind", Msg: "input kind is required"}
		}
		if p.Render.Kind == "" {
			return &ConfigError{Pipeline: p.Name, Field: "render.kind", Msg: "render kind is required"}
		}
		if len(p.Outputs) == 0 {
			return &ConfigError{Pipeline: p.Name, Field: "outputs", Msg: "at least one output is required"}
		}
		switch p.Pacing.TimeMode {
		case "live", "sample":
		default:
			return &ConfigError{Pipeline: p.Name, Field: "pacing.time_mode", Msg: "must be live or sample"}
		}
		switch p.Pacing.LagPolicy {
		case "catchup", "drop":
		default:
			return &ConfigError{Pipeline: p.Name, Field: "pacing.lag_policy", Msg: "must be catchup or drop"}
		}
		switch p.Restart.Policy {
		case "none", "limited", "always":
		default:
			return &ConfigError{Pipeline: p.Name, Field: "restart.policy", Msg: "must be none, limited or always"}
		}
		if p.Restart.Policy == "limited" && p.Restart.Max <= 0 {
			return &ConfigError{Pipeline: p.Name, Field: "restart.max", Msg: "must be positive for limited policy"}
		}
	}
	return nil
}
