package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/roach88/udonmeta/internal/codec"
)

// dumpProgress draws a progress bar over a dump run. A quiet reporter
// draws nothing.
type dumpProgress struct {
	quiet bool
	w     io.Writer
	bar   *progressbar.ProgressBar
}

func newDumpProgress(w io.Writer, quiet bool) *dumpProgress {
	return &dumpProgress{quiet: quiet, w: w}
}

func (p *dumpProgress) OnStart(total int) {
	if p.quiet || total == 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("Dumping programs"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("assets/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.w)
		}),
	)
}

func (p *dumpProgress) OnFile(codec.DumpResult) {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *dumpProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
