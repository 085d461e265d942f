package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/udonmeta/internal/classify"
	"github.com/roach88/udonmeta/internal/ir"
	"github.com/roach88/udonmeta/internal/registry"
	"github.com/roach88/udonmeta/internal/snapshot"
)

// ModulesOptions holds flags for the modules command.
type ModulesOptions struct {
	*RootOptions
	Output string
}

// ModulesSummary is the modules command's result.
type ModulesSummary struct {
	Digest      string         `json:"digest"`
	Output      string         `json:"output,omitempty"`
	Definitions int            `json:"definitions"`
	Unresolved  int            `json:"unresolved"`
	Structural  int            `json:"structural"`
	Modules     int            `json:"modules"`
	Indexed     int            `json:"indexed"`
	Functions   int            `json:"functions"`
	Unknown     int            `json:"unknown"`
	Corrected   int            `json:"corrected"`
	Skipped     []string       `json:"skipped,omitempty"`
	Index       ir.ModuleIndex `json:"index,omitempty"`
}

// RenderText implements TextRenderer.
func (s ModulesSummary) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "✓ Classified %d function(s) in %d of %d module(s)\n", s.Functions, s.Indexed, s.Modules)
	fmt.Fprintf(w, "  registry: %d definition(s), %d unresolved, %d structural failure(s)\n",
		s.Definitions, s.Unresolved, s.Structural)
	fmt.Fprintf(w, "  unknown: %d, corrected by prefix: %d\n", s.Unknown, s.Corrected)
	for _, skipped := range s.Skipped {
		fmt.Fprintf(w, "  skipped %s\n", skipped)
	}
	if s.Output != "" {
		fmt.Fprintf(w, "Wrote module info to %s\n", s.Output)
	}
	_, err := fmt.Fprintf(w, "digest: %s\n", s.Digest)
	return err
}

// NewModulesCommand creates the modules command.
func NewModulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "modules <snapshot>",
		Short: "Classify the VM's wrapper modules",
		Long: `Build module info from a VM surface snapshot (YAML or JSON).

The snapshot's node registry is scanned for callable definitions, then every
function of every wrapper module is classified as a method, field,
constructor or operator with its original member name and static/void flags.

Without --output the module info document is written to stdout.

Example:
  udonmeta modules surface.yaml -o modules.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModules(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runModules(opts *ModulesOptions, path string, cmd *cobra.Command) error {
	sess, err := startSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := sess.formatter

	snap, err := snapshot.Load(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("invalid snapshot %s", path), err)
	}

	lookup, scan := registry.Scan(snap.Registry(), snap.Resolver(), registry.ScanOptions{Logger: sess.logger})
	index, report, err := classify.Classify(snap.Surface(), lookup, classify.Options{Logger: sess.logger})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeClassify, "cannot list modules", err)
	}

	digest, err := ir.ModuleIndexDigest(index)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeClassify, "cannot digest module info", err)
	}

	summary := ModulesSummary{
		Digest:      digest,
		Output:      opts.Output,
		Definitions: scan.Definitions,
		Unresolved:  len(scan.Unresolved),
		Structural:  len(scan.Structural),
		Modules:     report.Modules,
		Indexed:     report.Indexed,
		Functions:   report.Functions,
		Unknown:     report.Unknown,
		Corrected:   report.Corrected,
	}
	for _, skipped := range report.Skipped {
		summary.Skipped = append(summary.Skipped, skipped.Error())
	}

	if opts.Output == "" && formatter.JSON() {
		summary.Index = index
		return formatter.Success(summary)
	}

	data, err := ir.MarshalDocument(index)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeClassify, "cannot encode module info", err)
	}

	if opts.Output == "" {
		fmt.Fprintln(formatter.Writer, string(data))
		formatter.VerboseLog("%d function(s) in %d module(s), digest %s", summary.Functions, summary.Indexed, digest)
		return nil
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWrite, fmt.Sprintf("cannot write %s", opts.Output), err)
	}
	return formatter.Success(summary)
}
