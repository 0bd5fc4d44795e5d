// Command float runs the float state store: an MCP server, a one-shot
// dispatcher, a rule compiler, a scenario runner and journal tools.
package main

import (
	"os"

	"github.com/roach88/float/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
