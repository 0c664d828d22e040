// Package mcp exposes the query pipeline as MCP tools over stdio so agent
// clients can run analytics queries and inspect the schema.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/cube-pilot/internal/orchestrator"
	"github.com/ziadkadry99/cube-pilot/internal/schema"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes query and schema tools.
type Server struct {
	orch     *orchestrator.Orchestrator
	searcher *schema.Searcher
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server. The searcher may be nil when semantic
// schema search is not configured.
func NewServer(orch *orchestrator.Orchestrator, searcher *schema.Searcher) *Server {
	s := &Server{
		orch:     orch,
		searcher: searcher,
	}

	s.mcp = server.NewMCPServer(
		"cubepilot",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(runQueryTool, s.handleRunQuery)
	s.mcp.AddTool(getSchemaTool, s.handleGetSchema)
	s.mcp.AddTool(searchSchemaTool, s.handleSearchSchema)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
