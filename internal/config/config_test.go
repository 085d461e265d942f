package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, body string) {
	t.Helper()
	dir := filepath.Join(root, Dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "serializedProgramCompressedBytes", cfg.Asset.Key)
	assert.Equal(t, []string{"*.asset"}, cfg.Asset.Patterns)
	assert.False(t, cfg.Asset.Recursive)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.StaleAfter)
	assert.NoError(t, Validate(cfg))
}

func TestLoadUsesDefaultsWithoutFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadFromDir(root)
	require.NoError(t, err)

	assert.Equal(t, Default().Asset, cfg.Asset)
	assert.Equal(t, filepath.Join(root, ".udonmeta", "jobs.db"), cfg.Jobs.Database)
	assert.Equal(t, filepath.Join(root, ".udonmeta", "jobs"), cfg.Jobs.Workdir)
	assert.Empty(t, cfg.Dump.OutputDir)
}

func TestLoadMergesFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
asset:
  patterns: ["*.asset", "*.prefab"]
  recursive: true
jobs:
  stale_after: 90m
  database: /var/lib/udonmeta/jobs.db
log:
  level: debug
`)

	cfg, err := LoadFromDir(root)
	require.NoError(t, err)

	assert.Equal(t, "serializedProgramCompressedBytes", cfg.Asset.Key, "unset keys keep defaults")
	assert.Equal(t, []string{"*.asset", "*.prefab"}, cfg.Asset.Patterns)
	assert.True(t, cfg.Asset.Recursive)
	assert.Equal(t, 90*time.Minute, cfg.Jobs.StaleAfter)
	assert.Equal(t, "/var/lib/udonmeta/jobs.db", cfg.Jobs.Database, "absolute paths are kept")
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestEnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "log:\n  level: warn\n")
	t.Setenv("UDONMETA_LOG_LEVEL", "error")
	t.Setenv("UDONMETA_ASSET_KEY", "otherProgramBytes")
	t.Setenv("UDONMETA_JOBS_STALE_AFTER", "2h")

	cfg, err := LoadFromDir(root)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "otherProgramBytes", cfg.Asset.Key)
	assert.Equal(t, 2*time.Hour, cfg.Jobs.StaleAfter)
}

func TestExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dump:\n  output_dir: out\n"), 0o644))

	root := t.TempDir()
	cfg, err := NewLoader(root, path).Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "out"), cfg.Dump.OutputDir)

	_, err = NewLoader(root, filepath.Join(root, "missing.yaml")).Load()
	assert.Error(t, err, "an explicit config file must exist")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "asset: [unclosed\n")
	_, err := LoadFromDir(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Asset.Key = "not a key"
	cfg.Asset.Patterns = []string{"[unclosed", " "}
	cfg.Jobs.StaleAfter = 0
	cfg.Log.Level = "loud"

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidKey))
	assert.True(t, errors.Is(err, ErrInvalidPattern))
	assert.True(t, errors.Is(err, ErrInvalidJobs))
	assert.True(t, errors.Is(err, ErrInvalidLogLevel))
}

func TestValidateRequiresPatterns(t *testing.T) {
	cfg := Default()
	cfg.Asset.Patterns = nil
	assert.ErrorIs(t, Validate(cfg), ErrInvalidPattern)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "info"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.SlogLevel())
}
