package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidKey indicates an unusable asset key.
	ErrInvalidKey = errors.New("invalid asset key")

	// ErrInvalidPattern indicates a missing or malformed asset pattern.
	ErrInvalidPattern = errors.New("invalid asset pattern")

	// ErrInvalidJobs indicates unusable job store settings.
	ErrInvalidJobs = errors.New("invalid jobs settings")

	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if !keyPattern.MatchString(cfg.Asset.Key) {
		errs = append(errs, fmt.Errorf("%w: %q must be an identifier", ErrInvalidKey, cfg.Asset.Key))
	}
	if len(cfg.Asset.Patterns) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one pattern required", ErrInvalidPattern))
	}
	for _, p := range cfg.Asset.Patterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("%w: empty pattern", ErrInvalidPattern))
			continue
		}
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p, err))
		}
	}

	if strings.TrimSpace(cfg.Jobs.Database) == "" {
		errs = append(errs, fmt.Errorf("%w: database path is required", ErrInvalidJobs))
	}
	if strings.TrimSpace(cfg.Jobs.Workdir) == "" {
		errs = append(errs, fmt.Errorf("%w: workdir is required", ErrInvalidJobs))
	}
	if cfg.Jobs.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("%w: stale_after must be positive, got %s", ErrInvalidJobs, cfg.Jobs.StaleAfter))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Log.Level))
	}

	return errors.Join(errs...)
}
