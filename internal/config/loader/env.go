package loader

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DefaultEnvPrefix is prepended to every environment variable name.
const DefaultEnvPrefix = "TALLY_"

// EnvLoader loads configuration from environment variables.
// Fields are selected with `env` tags; nested structs add their `envPrefix`.
// Variables that are unset leave the field untouched.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "TALLY_")
	environ map[string]string // Overrides the process environment when set
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "TALLY_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix}
}

// NewEnvLoaderWithEnviron creates a loader that reads from environ instead
// of the process environment.
func NewEnvLoaderWithEnviron(prefix string, environ map[string]string) *EnvLoader {
	return &EnvLoader{prefix: prefix, environ: environ}
}

// Load applies environment overrides to target.
func (l *EnvLoader) Load(target any) error {
	opts := env.Options{
		Prefix:      l.prefix,
		Environment: l.environ,
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
