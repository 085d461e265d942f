// Package config loads udonmeta settings.
//
// Priority, highest first: UDONMETA_* environment variables, the config file
// (.udonmeta/config.yml under the project root, or an explicit path), then
// built-in defaults.
package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/udonmeta/internal/asset"
)

// Config is the complete udonmeta configuration.
type Config struct {
	Asset AssetConfig `yaml:"asset" mapstructure:"asset"`
	Dump  DumpConfig  `yaml:"dump" mapstructure:"dump"`
	Jobs  JobsConfig  `yaml:"jobs" mapstructure:"jobs"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// AssetConfig controls how program blobs are found.
type AssetConfig struct {
	Key       string   `yaml:"key" mapstructure:"key"`           // asset field holding the blob
	Patterns  []string `yaml:"patterns" mapstructure:"patterns"` // glob patterns for asset files
	Recursive bool     `yaml:"recursive" mapstructure:"recursive"`
}

// DumpConfig controls program dumps.
type DumpConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"` // empty: <asset dir>/serialized
}

// JobsConfig controls the batch compile job store.
type JobsConfig struct {
	Database   string        `yaml:"database" mapstructure:"database"`
	Workdir    string        `yaml:"workdir" mapstructure:"workdir"`
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"` // pending jobs older than this are stale
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Asset: AssetConfig{
			Key:      asset.DefaultKey,
			Patterns: append([]string(nil), asset.DefaultPatterns...),
		},
		Jobs: JobsConfig{
			Database:   filepath.Join(".udonmeta", "jobs.db"),
			Workdir:    filepath.Join(".udonmeta", "jobs"),
			StaleAfter: 24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// SlogLevel maps the configured level onto slog. Unknown levels map to info;
// Validate rejects them first.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolvePaths makes relative job paths relative to root.
func (c *Config) resolvePaths(root string) {
	for _, p := range []*string{&c.Jobs.Database, &c.Jobs.Workdir, &c.Dump.OutputDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}
