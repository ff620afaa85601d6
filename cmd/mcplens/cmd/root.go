// Package cmd provides the CLI commands for mcplens.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// errNoUpstreams signals that every configured upstream failed to start.
// Mapped to exit code 2 so wrappers can distinguish it from config errors.
var errNoUpstreams = errors.New("no upstream server could be started")

var rootCmd = &cobra.Command{
	Use:   "mcplens",
	Short: "mcplens - aggregating MCP proxy with response caching",
	Long: `mcplens is an aggregating proxy for Model Context Protocol (MCP) servers.

It spawns the MCP servers listed in its configuration, exposes their tools
under qualified names ({server}_{tool}) over a single stdio connection, and
intercepts oversized tool responses: the full content is cached and the
client receives a truncated reply with a cache_id. The cached content can
then be explored incrementally with the proxy_filter, proxy_search, and
proxy_explore tools instead of re-reading it whole.

Quick start:
  1. Create mcp.json listing your servers under mcpServers.
  2. Run: mcplens

Configuration:
  The config path is taken from --config, then the CONFIG_FILE environment
  variable, then ./mcp.json. Log verbosity comes from LOG_LEVEL
  (DEBUG, INFO, WARNING, ERROR, CRITICAL).

Exit codes:
  0  graceful shutdown
  1  configuration or startup error
  2  no configured upstream could be started`,
	SilenceUsage: true,
	RunE:         runStart,
}

// Execute runs the root command and maps failures onto exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errNoUpstreams) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $CONFIG_FILE, then ./mcp.json)")
}
