package batch

import (
	"context"
	"path/filepath"

	"github.com/roach88/udonmeta/internal/codec"
	"github.com/roach88/udonmeta/internal/program"
	"github.com/roach88/udonmeta/internal/store"
)

// Compiler produces the compiled program for one job item. It runs in
// phase 2, after the host has compiled the sources written in phase 1.
type Compiler interface {
	Compile(ctx context.Context, jobID string, item store.JobItem) (program.Program, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, jobID string, item store.JobItem) (program.Program, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, jobID string, item store.JobItem) (program.Program, error) {
	return f(ctx, jobID, item)
}

// AssetCompiler reads the program asset the host wrote next to each source
// file: <workdir>/<job id>/<className>.asset.
type AssetCompiler struct {
	Workdir string
	Decoder *codec.Decoder
}

// AssetPath is where the host leaves the compiled asset for an item.
func AssetPath(workdir, jobID, className string) string {
	return filepath.Join(workdir, jobID, className+".asset")
}

// SourcePath is where phase 1 writes an item's source.
func SourcePath(workdir, jobID, className string) string {
	return filepath.Join(workdir, jobID, className+".cs")
}

// Compile decodes the item's asset. A missing asset or one without a
// program is a failed compile.
func (c AssetCompiler) Compile(_ context.Context, jobID string, item store.JobItem) (program.Program, error) {
	dec := c.Decoder
	if dec == nil {
		dec = codec.NewDecoder("", nil)
	}
	return dec.DecodeFile(AssetPath(c.Workdir, jobID, item.ClassName))
}
