package configloader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/cedar/internal/configloader"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := configloader.Default()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.Color)
	assert.Zero(t, cfg.TimeoutMicros)
}

func TestLoadWithoutConfigFile(t *testing.T) {
	t.Parallel()

	cfg, err := configloader.Load(configloader.LoadOptions{WorkingDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadExplicitPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"log_level: debug\ncolor: never\nlanguage: words\ntimeout_micros: 500\n",
	), 0o644))

	cfg, err := configloader.Load(configloader.LoadOptions{ExplicitPath: path})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "never", cfg.Color)
	assert.Equal(t, "words", cfg.Language)
	assert.Equal(t, uint64(500), cfg.TimeoutMicros)
}

func TestLoadDiscoversUpward(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".cedar.yaml"),
		[]byte("color: always\n"), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := configloader.Load(configloader.LoadOptions{WorkingDir: nested})
	require.NoError(t, err)
	assert.Equal(t, "always", cfg.Color)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".cedar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("color: sometimes\n"), 0o644))

	_, err := configloader.Load(configloader.LoadOptions{ExplicitPath: path})
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".cedar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - ["), 0o644))

	_, err := configloader.Load(configloader.LoadOptions{ExplicitPath: path})
	assert.Error(t, err)
}

func TestLoadMissingExplicitPath(t *testing.T) {
	t.Parallel()

	_, err := configloader.Load(configloader.LoadOptions{
		ExplicitPath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	assert.Error(t, err)
}
