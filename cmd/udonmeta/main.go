// Command udonmeta extracts Udon programs and module metadata.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/udonmeta/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
