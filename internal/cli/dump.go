package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/udonmeta/internal/codec"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
	OutputDir string
	Recursive bool
	Quiet     bool // no progress bar
}

// DumpFileResult is one asset's line in the dump summary.
type DumpFileResult struct {
	Source    string `json:"source"`
	Output    string `json:"output,omitempty"`
	ProgramID string `json:"program_id,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DumpSummary is the dump command's result.
type DumpSummary struct {
	Discovered int              `json:"discovered"`
	Written    int              `json:"written"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Files      []DumpFileResult `json:"files"`
}

// RenderText implements TextRenderer.
func (s DumpSummary) RenderText(w io.Writer) error {
	for _, f := range s.Files {
		switch {
		case f.Error != "":
			fmt.Fprintf(w, "✗ %s: %s\n", f.Source, f.Error)
		case f.Skipped:
			fmt.Fprintf(w, "- %s: no program\n", f.Source)
		default:
			fmt.Fprintf(w, "✓ %s -> %s\n", f.Source, f.Output)
		}
	}
	_, err := fmt.Fprintf(w, "Dumped %d of %d asset(s): %d skipped, %d failed\n",
		s.Written, s.Discovered, s.Skipped, s.Failed)
	return err
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <asset|dir>",
		Short: "Write the program of each asset as JSON",
		Long: `Extract the compiled program blob from Udon program assets and write one
program document per asset.

A directory is searched with the configured asset patterns (asset.patterns);
files are written to <output>/<asset file>.json, by default into a
"serialized" directory next to each asset. Assets without a program are
skipped; assets that fail to decode are reported and do not stop the run.

Example:
  udonmeta dump Assets/Programs
  udonmeta dump --recursive -o out/ Assets`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "output directory (default dump.output_dir or <asset dir>/serialized)")
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "search subdirectories")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "no progress bar")

	return cmd
}

func runDump(opts *DumpOptions, path string, cmd *cobra.Command) error {
	sess, err := startSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := sess.formatter

	info, err := os.Stat(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("cannot read %s", path), err)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = sess.cfg.Dump.OutputDir
	}
	dec := sess.decoder()

	var report *codec.DumpReport
	if info.IsDir() {
		progress := newDumpProgress(cmd.ErrOrStderr(), opts.Quiet || formatter.JSON() || opts.Verbose)
		report, err = dec.DumpDir(path, codec.DumpOptions{
			Patterns:  sess.cfg.Asset.Patterns,
			Recursive: opts.Recursive || sess.cfg.Asset.Recursive,
			OutputDir: outputDir,
			Logger:    sess.logger,
			OnStart:   progress.OnStart,
			OnFile:    progress.OnFile,
		})
		progress.Finish()
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("cannot search %s", path), err)
		}
	} else {
		result := dec.DumpFile(path, outputDir)
		report = &codec.DumpReport{Discovered: 1, Results: []codec.DumpResult{result}}
		switch {
		case result.Skipped:
			report.Skipped++
		case result.Err != nil:
			report.Failed++
		default:
			report.Written++
		}
	}

	summary := summarizeDump(report)
	if err := formatter.Success(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d asset(s) failed to dump", ErrCodeDump, summary.Failed))
	}
	return nil
}

func summarizeDump(report *codec.DumpReport) DumpSummary {
	s := DumpSummary{
		Discovered: report.Discovered,
		Written:    report.Written,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		Files:      make([]DumpFileResult, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		f := DumpFileResult{Source: r.Source, Output: r.Output, ProgramID: r.ProgramID, Skipped: r.Skipped}
		if r.Err != nil {
			f.Error = r.Err.Error()
		}
		s.Files = append(s.Files, f)
	}
	return s
}
