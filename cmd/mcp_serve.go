package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bsod-cli/internal/mcp"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Start an MCP server exposing the analyzer to AI agents",
	Long: `Start a Model Context Protocol (MCP) server on stdio that exposes
bsod's diagnostic tools to MCP-compatible AI agents.

The server provides tools for:
  - Analyzing a dump file
  - Querying saved crash history
  - Looking up bugcheck codes
  - Aggregating crash patterns

Example client config:
  {
    "mcp": {
      "bsod": {
        "type": "local",
        "command": ["bsod", "mcp-serve"],
        "enabled": true
      }
    }
  }`,
	Example: `  # Start the server (a client speaks JSON-RPC over stdin/stdout)
  bsod mcp-serve

  # Poke it by hand
  echo '{"jsonrpc":"2.0","method":"tools/list","id":1}' | bsod mcp-serve`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := mcp.Serve(); err != nil {
			fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpServeCmd)
}
