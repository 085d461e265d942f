package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/udonmeta/internal/codec"
	"github.com/roach88/udonmeta/internal/disasm"
	"github.com/roach88/udonmeta/internal/ir"
)

// DisasmOptions holds flags for the disasm command.
type DisasmOptions struct {
	*RootOptions
	Modules    string
	BestEffort bool
}

// DisasmResult is the JSON form of a listing.
type DisasmResult struct {
	Lines       []string `json:"lines"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NewDisasmCommand creates the disasm command.
func NewDisasmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DisasmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "disasm <program.json|asset>",
		Short: "Disassemble a program",
		Long: `Print the instruction listing of a program document, or of the program
carried by an asset.

With --modules, EXTERN instructions are annotated with the definition kind,
original member name, owner type and static/void flags from module info.

Example:
  udonmeta disasm serialized/Door.asset.json
  udonmeta disasm --modules modules.json Door.asset`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisasm(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Modules, "modules", "m", "", "module info file for extern annotations")
	cmd.Flags().BoolVar(&opts.BestEffort, "best-effort", false, "report decoding problems as warnings and keep going")

	return cmd
}

func runDisasm(opts *DisasmOptions, path string, cmd *cobra.Command) error {
	sess, err := startSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := sess.formatter

	doc, err := loadProgram(sess, path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("cannot load program %s", path), err)
	}

	dopts := disasm.Options{Mode: disasm.Strict}
	if opts.BestEffort {
		dopts.Mode = disasm.BestEffort
	}
	if opts.Modules != "" {
		data, err := os.ReadFile(opts.Modules)
		if err == nil {
			dopts.Modules, err = ir.UnmarshalModuleIndex(data)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("cannot load module info %s", opts.Modules), err)
		}
		formatter.VerboseLog("Loaded %d module(s) from %s", len(dopts.Modules), opts.Modules)
	}

	listing, err := disasm.Disassemble(doc, dopts)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDisasm, "disassembly failed", err)
	}

	if !formatter.JSON() {
		return listing.WriteText(formatter.Writer)
	}

	var buf bytes.Buffer
	if err := listing.WriteText(&buf); err != nil {
		return err
	}
	result := DisasmResult{}
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		if !strings.HasPrefix(line, "; warning: ") {
			result.Lines = append(result.Lines, line)
		}
	}
	for _, diag := range listing.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, diag.Error())
	}
	return formatter.Success(result)
}

// loadProgram reads a program document, or decodes and encodes the program
// of an asset when the file is not JSON.
func loadProgram(sess *session, path string) (*ir.ProgramDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return ir.UnmarshalProgram(data)
	}

	p, err := sess.decoder().Decode(string(data))
	if err != nil {
		return nil, err
	}
	return codec.Encode(p)
}
