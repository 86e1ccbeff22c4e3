// Command atomspace is a small CLI over the hypergraph store (spec.md
// §6: "Exit codes / CLI — not part of the core; an embedding executable
// decides"), mirroring the teacher's cobra root-command/Execute shape
// (o9nn-echo.go's main.go and cmd/echo.go).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
