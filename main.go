// Command flux runs the streaming dataflow execution core daemon.
package main

import (
	"fmt"
	"os"

	"fluxgraph.dev/flux/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
