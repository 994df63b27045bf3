// Command mcpcore runs the MCP server framework's reference binary: a
// zero-config server (internal/builtin) wired to whichever transports are
// enabled in configuration.
package main

import "github.com/vecmcp/mcpserver/cmd/mcpcore/cmd"

func main() {
	cmd.Execute()
}
