package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/tally/internal/config/loader"
)

// Default configuration values.
const (
	DefaultMaxEntries       = 1000
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultInstructionLimit = 1_000_000
)

// Config is the complete Tally configuration.
type Config struct {
	Engine  EngineConfig  `toml:"engine" envPrefix:"ENGINE_"`
	Logging LoggingConfig `toml:"logging" envPrefix:"LOG_"`
	Script  ScriptConfig  `toml:"script" envPrefix:"SCRIPT_"`
}

// EngineConfig configures the calculator session.
type EngineConfig struct {
	InitialValue int64 `toml:"initial_value" env:"INITIAL_VALUE"`
	MaxEntries   int   `toml:"max_entries" env:"MAX_ENTRIES"`
	ReadOnly     bool  `toml:"read_only" env:"READ_ONLY"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// ScriptConfig configures the Lua runtime.
type ScriptConfig struct {
	InstructionLimit int64 `toml:"instruction_limit" env:"INSTRUCTION_LIMIT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxEntries: DefaultMaxEntries,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Script: ScriptConfig{
			InstructionLimit: DefaultInstructionLimit,
		},
	}
}

// DefaultPath returns the user configuration file path,
// e.g. ~/.config/tally/config.toml. It returns "" if no user
// configuration directory is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tally", "config.toml")
}

// Load builds a configuration from defaults, the TOML file at path and
// TALLY_* environment variables, in increasing priority. An empty path or a
// missing file is skipped.
func Load(path string) (*Config, error) {
	return LoadWith(
		loader.NewTOMLLoader(path),
		loader.NewEnvLoader(loader.DefaultEnvPrefix),
	)
}

// LoadWith applies each loader over the defaults in order and validates
// the result.
func LoadWith(loaders ...loader.Loader) (*Config, error) {
	cfg := Default()
	for _, l := range loaders {
		if err := l.Load(cfg); err != nil {
			return nil, err
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Engine.MaxEntries <= 0 {
		errs = append(errs, &ValidationError{
			Path:    "engine.max_entries",
			Message: "must be positive",
			Value:   c.Engine.MaxEntries,
			Code:    ErrCodeOutOfRange,
		})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ValidationError{
			Path:    "logging.level",
			Message: "must be debug, info, warn, or error",
			Value:   c.Logging.Level,
			Code:    ErrCodeInvalidEnum,
		})
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, &ValidationError{
			Path:    "logging.format",
			Message: "must be text or json",
			Value:   c.Logging.Format,
			Code:    ErrCodeInvalidEnum,
		})
	}

	if c.Script.InstructionLimit < 0 {
		errs = append(errs, &ValidationError{
			Path:    "script.instruction_limit",
			Message: "must not be negative",
			Value:   c.Script.InstructionLimit,
			Code:    ErrCodeOutOfRange,
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// String returns a one-line summary for logging.
func (c *Config) String() string {
	return fmt.Sprintf("engine{initial=%d max_entries=%d read_only=%t} logging{level=%s format=%s} script{instruction_limit=%d}",
		c.Engine.InitialValue, c.Engine.MaxEntries, c.Engine.ReadOnly,
		c.Logging.Level, c.Logging.Format, c.Script.InstructionLimit)
}
