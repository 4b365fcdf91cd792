// Package mcp exposes the crash-analysis pipeline to MCP clients so an
// agent can triage dumps and query history through tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewServer builds the MCP server with all crash-analysis tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"bsod-cli",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	registerAnalyzeDumpTool(s)
	registerQueryHistoryTool(s)
	registerLookupBugcheckTool(s)
	registerCrashPatternsTool(s)

	return s
}

// Serve runs the server over stdio.
func Serve() error {
	return server.ServeStdio(NewServer())
}
