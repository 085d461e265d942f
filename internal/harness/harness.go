package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/udonmeta/internal/classify"
	"github.com/roach88/udonmeta/internal/registry"
	"github.com/roach88/udonmeta/internal/snapshot"
)

// Options configures Run.
type Options struct {
	// Logger receives scan and classification logs. Nil discards them.
	Logger *slog.Logger
}

// Run executes a scenario: parse its surface, scan the registry, classify
// the modules and evaluate the assertions.
//
// An error is returned when the scenario cannot run at all (invalid surface,
// module listing failure); failed assertions are reported in the Result.
func Run(scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	data, err := scenario.surfaceYAML()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: encode surface: %w", scenario.Name, err)
	}
	snap, err := snapshot.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	lookup, scan := registry.Scan(snap.Registry(), snap.Resolver(), registry.ScanOptions{Logger: logger})
	index, report, err := classify.Classify(snap.Surface(), lookup, classify.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Index = index
	result.Scan = scan
	result.Report = report

	for i, a := range scenario.Assertions {
		if err := evaluate(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	logger.Debug("scenario complete", "scenario", scenario.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}
