package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tally/internal/config/loader"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(0), cfg.Engine.InitialValue)
	assert.Equal(t, DefaultMaxEntries, cfg.Engine.MaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[engine]
initial_value = 10
max_entries = 20

[logging]
level = "DEBUG"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TALLY_ENGINE_MAX_ENTRIES", "30")
	t.Setenv("TALLY_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(10), cfg.Engine.InitialValue)
	assert.Equal(t, 30, cfg.Engine.MaxEntries, "env overrides file")
	assert.Equal(t, "debug", cfg.Logging.Level, "level is normalized")
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxEntries, cfg.Engine.MaxEntries)
}

func TestLoadWith_ParseError(t *testing.T) {
	fsys := fstest.MapFS{"c.toml": {Data: []byte("[engine\n")}}

	_, err := LoadWith(loader.NewTOMLLoaderWithFS(fsys, "c.toml"))
	var perr *ParseError
	require.True(t, errors.As(err, &perr), "expected *ParseError, got %v", err)
}

func TestLoadWith_ValidationErrors(t *testing.T) {
	fsys := fstest.MapFS{"c.toml": {Data: []byte(`
[engine]
max_entries = 0

[logging]
level = "loud"
format = "xml"
`)}}

	_, err := LoadWith(loader.NewTOMLLoaderWithFS(fsys, "c.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 3)
	assert.Equal(t, "engine.max_entries", verrs[0].Path)
	assert.Equal(t, ErrCodeOutOfRange, verrs[0].Code)
	assert.Equal(t, "logging.level", verrs[1].Path)
	assert.Equal(t, "logging.format", verrs[2].Path)
	assert.Equal(t, "invalid_enum", verrs[2].Code.String())
}

func TestValidate_NegativeInstructionLimit(t *testing.T) {
	cfg := Default()
	cfg.Script.InstructionLimit = -1

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "script.instruction_limit", verr.Path)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if p := DefaultPath(); p != "" {
		assert.Equal(t, "config.toml", filepath.Base(p))
		assert.Equal(t, "tally", filepath.Base(filepath.Dir(p)))
	}
}

func TestConfigString(t *testing.T) {
	assert.Contains(t, Default().String(), "max_entries=1000")
}
