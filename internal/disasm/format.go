package disasm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/roach88/udonmeta/internal/ir"
)

// WriteText writes the listing: entry labels before their instruction,
// one instruction per line, extern annotations after a semicolon, and
// diagnostics last.
func (l *Listing) WriteText(w io.Writer) error {
	labels := make(map[uint32][]string)
	for _, e := range l.Entries {
		labels[e.Address] = append(labels[e.Address], e.Name+":")
		if e.HasCallTarget {
			labels[e.CallTarget] = append(labels[e.CallTarget], e.Name+".body:")
		}
	}

	bw := bufio.NewWriter(w)
	for _, in := range l.Instructions {
		for _, label := range labels[in.Address] {
			fmt.Fprintln(bw, label)
		}
		fmt.Fprint(bw, "  ", in.String())
		if in.Extern != nil {
			fmt.Fprint(bw, "  ; ", describeExtern(in.Extern))
		}
		fmt.Fprintln(bw)
	}
	for _, diag := range l.Diagnostics {
		fmt.Fprintf(bw, "; warning: %s\n", diag)
	}
	return bw.Flush()
}

func describeExtern(info *ir.ExternInfo) string {
	s := string(info.DefType)
	if info.OriginalName != nil {
		s += " " + *info.OriginalName
	}
	if info.TypeName != "" {
		s += " on " + info.TypeName
	}
	if info.IsStatic != nil && *info.IsStatic {
		s += " static"
	}
	if info.ReturnsVoid != nil && *info.ReturnsVoid {
		s += " void"
	}
	return s
}
