// Package cmd provides the CLI commands for mcpcore.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vecmcp/mcpserver/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcpcore",
	Short: "mcpcore - MCP server framework",
	Long: `mcpcore is a reference server built on the MCP server framework:
wire codec, session manager, dispatcher, outbound request registry, and
stdio/legacy-SSE/streamable-HTTP transports.

Quick start:
  1. Create a config file: mcpcore.yaml
  2. Run: mcpcore serve

Configuration:
  Config is loaded from mcpcore.yaml in the current directory,
  $HOME/.mcpcore/, or /etc/mcpcore/.

  Environment variables can override config values with the MCPCORE_ prefix.
  Example: MCPCORE_SERVER_ADDR=:9090

Commands:
  serve       Start the server
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcpcore.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
