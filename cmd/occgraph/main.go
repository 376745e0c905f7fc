// Command occgraph loads, queries and exercises an optimistic
// transaction store over a triple store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/occgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
