// Package mcpserver exposes the memory store as MCP tools over stdio.
//
// Every tool answers with a JSON text body. Failures are reported as tool
// results carrying {"error": "..."} with IsError set, never as protocol
// errors, so a client always gets a readable answer.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/oceanbase/powermem-mcp/pkg/core"
	"github.com/oceanbase/powermem-mcp/pkg/observe"
)

// Name is the MCP server name announced to clients.
const Name = "powermem-mcp"

// Version is set at build time via ldflags.
var Version = "dev"

// Server binds the MCP tools to a memory client.
type Server struct {
	client *core.Client
	obs    *observe.Observer
	mcp    *server.MCPServer
}

// New creates the MCP server with all tools registered. obs may be nil.
func New(client *core.Client, obs *observe.Observer) *Server {
	if obs == nil {
		obs = observe.Nop()
	}

	s := &Server{
		client: client,
		obs:    obs,
		mcp: server.NewMCPServer(
			Name,
			Version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithInstructions(instructions),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP on stdin and stdout until stdin closes.
func (s *Server) ServeStdio() error {
	s.obs.Log().Info().Str("server", Name).Str("version", Version).Msg("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(getTool(), s.handleGet)
	s.mcp.AddTool(batchGetTool(), s.handleBatchGet)
	s.mcp.AddTool(storeTool(), s.handleStore)
	s.mcp.AddTool(updateTool(), s.handleUpdate)
	s.mcp.AddTool(deleteTool(), s.handleDelete)
	s.mcp.AddTool(listCollectionsTool(), s.handleListCollections)
	s.mcp.AddTool(consolidateTool(), s.handleConsolidate)
}

const instructions = `Semantic memory with two-stage retrieval.

1. search_memory returns previews only (title, description, similarity).
2. get_memory or batch_get_memories returns the full document for the ids you pick.

memory_level is "global" (role collections such as backend-patterns, chosen by role)
or a project name (stored in "proj-<name>"). Store reusable patterns globally and
project-specific facts under the project.`
