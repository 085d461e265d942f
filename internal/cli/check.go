package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/roach88/udonmeta/internal/harness"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Filter string // scenario name glob
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// RenderText implements TextRenderer.
func (r CheckResult) RenderText(w io.Writer) error {
	if r.Total == 0 {
		_, err := fmt.Fprintln(w, "No scenarios found.")
		return err
	}
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
	return err
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenarios-dir>",
		Short: "Run classification scenarios",
		Long: `Run classification scenarios against their inline VM surfaces.

Each *.yaml file in the directory declares a surface snapshot and
assertions on the resulting module info (see internal/harness).

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid directory, malformed scenario)

Examples:
  udonmeta check ./scenarios
  udonmeta check ./scenarios --filter "prefix_*"
  udonmeta check ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
	sess, err := startSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := sess.formatter

	if _, err := os.Stat(dir); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("scenarios directory not found: %s", dir), err)
	}

	var filter glob.Glob
	if opts.Filter != "" {
		filter, err = glob.Compile(opts.Filter)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("invalid filter %q", opts.Filter), err)
		}
	}

	scenarios, err := harness.LoadSuite(dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to load scenarios", err)
	}

	result := CheckResult{Scenarios: []ScenarioResult{}}
	for _, s := range scenarios {
		if filter != nil && !filter.Match(s.Name) {
			continue
		}
		sr := ScenarioResult{Name: s.Name}
		run, err := harness.Run(s, harness.Options{Logger: sess.logger})
		if err != nil {
			sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		} else {
			sr.Pass = run.Pass
			sr.Errors = run.Errors
		}
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	result.Total = len(result.Scenarios)

	if err := formatter.Success(result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d scenario(s) failed", ErrCodeCheck, result.Failed))
	}
	return nil
}
