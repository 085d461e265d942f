package codec

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/udonmeta/internal/asset"
	"github.com/roach88/udonmeta/internal/ir"
)

// OutputSubdir is where dumps go when no output directory is given.
const OutputSubdir = "serialized"

// DumpOptions configures DumpDir.
type DumpOptions struct {
	Patterns  []string // empty selects asset.DefaultPatterns
	Recursive bool

	// OutputDir receives one <asset file name>.json per program, under the
	// asset's directory relative to the root so same-named assets in
	// different subdirectories stay apart. Empty selects
	// <asset dir>/serialized.
	OutputDir string

	Logger *slog.Logger

	// OnStart is called once with the number of discovered assets.
	OnStart func(total int)

	// OnFile is called after each asset, whatever its outcome.
	OnFile func(DumpResult)
}

// DumpResult is the outcome for one asset.
type DumpResult struct {
	Source    string
	Output    string // empty unless written
	ProgramID string
	Skipped   bool // asset carried no program
	Err       error
}

// DumpReport summarizes a DumpDir run.
type DumpReport struct {
	Discovered int
	Written    int
	Skipped    int
	Failed     int
	Results    []DumpResult
}

// DumpDir decodes every asset under root and writes its Program document.
// Per-file failures are logged and counted; they never abort the batch.
// Returns an error only when discovery itself fails.
func (d *Decoder) DumpDir(root string, opts DumpOptions) (*DumpReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	discovery, err := asset.NewDiscovery(root, opts.Patterns, opts.Recursive)
	if err != nil {
		return nil, err
	}
	files, err := discovery.Discover()
	if err != nil {
		return nil, fmt.Errorf("discover assets: %w", err)
	}

	report := &DumpReport{Discovered: len(files)}
	if len(files) == 0 {
		logger.Warn("no asset files found", "root", root)
	}
	if opts.OnStart != nil {
		opts.OnStart(len(files))
	}

	for _, path := range files {
		result := d.DumpFile(path, outputDirFor(root, path, opts.OutputDir))
		switch {
		case result.Skipped:
			report.Skipped++
			logger.Warn("no program in asset", "file", path)
		case result.Err != nil:
			report.Failed++
			logger.Error("dump failed", "file", path, "error", result.Err)
		default:
			report.Written++
			logger.Debug("dumped program", "file", path, "output", result.Output, "program_id", result.ProgramID)
		}
		report.Results = append(report.Results, result)
		if opts.OnFile != nil {
			opts.OnFile(result)
		}
	}

	logger.Info("dump complete",
		"discovered", report.Discovered,
		"written", report.Written,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// outputDirFor mirrors the asset's subdirectory under outputDir.
func outputDirFor(root, path, outputDir string) string {
	if outputDir == "" {
		return ""
	}
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || !filepath.IsLocal(rel) {
		return outputDir
	}
	return filepath.Join(outputDir, rel)
}

// DumpFile decodes one asset and writes its Program document into outputDir
// (empty selects <asset dir>/serialized).
func (d *Decoder) DumpFile(path, outputDir string) DumpResult {
	result := DumpResult{Source: path}

	p, err := d.DecodeFile(path)
	if errors.Is(err, ErrNoProgram) {
		result.Skipped = true
		return result
	}
	if err != nil {
		result.Err = err
		return result
	}

	data, doc, err := EncodeJSON(p)
	if err != nil {
		result.Err = fmt.Errorf("%s: %w", path, err)
		return result
	}

	if outputDir == "" {
		outputDir = filepath.Join(filepath.Dir(path), OutputSubdir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		result.Err = err
		return result
	}

	out := filepath.Join(outputDir, filepath.Base(path)+".json")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		result.Err = err
		return result
	}
	result.Output = out

	// The id is informational; a failure here does not undo the write.
	if id, err := ir.ProgramID(doc); err == nil {
		result.ProgramID = id
	}
	return result
}
