// Command powermem-mcp serves the semantic memory store over MCP and offers
// a few maintenance subcommands for working with it from a shell.
package main

import "github.com/oceanbase/powermem-mcp/cmd/powermem-mcp/cli"

func main() {
	cli.Execute()
}
