// Engram - knowledge graph memory engine.
//
// Engram stores entities and relations in a persistent knowledge graph,
// serving them to AI agents over MCP and to humans over a CLI, with
// compatibility for legacy integer-id memory feeds.
package main

import (
	"fmt"
	"os"

	"github.com/engram-ai/engram-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
