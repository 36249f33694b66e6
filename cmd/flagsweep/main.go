// Command flagsweep compiles render flag schemas, runs the priority sweep
// scheduler over a scene and inspects the journal it writes.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/flagsweep/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
