package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Env holds process-level settings taken from the environment rather
// than the pipelines file. Variables are prefixed with EVENTFORGE_.
type Env struct {
	AdminAddr        string        `envconfig:"ADMIN_ADDR" default:":8080"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	GreptimeEndpoint string        `envconfig:"GREPTIMEDB_ENDPOINT"`
	GreptimeDatabase string        `envconfig:"GREPTIMEDB_DATABASE" default:"public"`
}

// LoadEnv reads process settings from the environment.
func LoadEnv() (Env, error) {
	var e Env
	err := envconfig.Process("eventforge", &e)
	return e, err
}
