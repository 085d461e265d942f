package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Dir is the project-local configuration directory.
const Dir = ".udonmeta"

// EnvPrefix prefixes environment overrides, e.g. UDONMETA_JOBS_DATABASE.
const EnvPrefix = "UDONMETA"

// Loader loads configuration for one project root.
type Loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a loader rooted at rootDir. A non-empty configFile is
// read instead of the default search and must exist.
func NewLoader(rootDir, configFile string) *Loader {
	return &Loader{rootDir: rootDir, configFile: configFile}
}

// Load merges defaults, the config file and the environment, resolves
// relative paths against the root and validates the result.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, Dir))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.resolvePaths(l.rootDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("asset.key", d.Asset.Key)
	v.SetDefault("asset.patterns", d.Asset.Patterns)
	v.SetDefault("asset.recursive", d.Asset.Recursive)

	v.SetDefault("dump.output_dir", d.Dump.OutputDir)

	v.SetDefault("jobs.database", d.Jobs.Database)
	v.SetDefault("jobs.workdir", d.Jobs.Workdir)
	v.SetDefault("jobs.stale_after", d.Jobs.StaleAfter)

	v.SetDefault("log.level", d.Log.Level)
}

// LoadFromDir loads configuration rooted at dir.
func LoadFromDir(dir string) (*Config, error) {
	return NewLoader(dir, "").Load()
}
