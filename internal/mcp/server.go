// Package mcp serves the converter over the Model Context Protocol so an
// assistant can inspect exports and run conversions on the user's behalf.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/source"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/storage"
)

// RegistryFunc builds a source registry for one Health Sync filename
// granularity. The convert and inspect tools take the granularity per call,
// so handlers rebuild the registry per request.
type RegistryFunc func(dateFormat string) (*source.Registry, error)

// New creates an MCP server with all tools and resources registered. A nil
// ledger disables run history.
func New(newRegistry RegistryFunc, ledger *storage.DB, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("fitbit2oscar", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("fitbit2oscar converts Fitbit health exports (Google Takeout archives, Health Sync CSV directories) into files OSCAR imports: a Dreem sleep CSV and Viatom pulse-oximeter binaries. Inspect an export to see what it holds, then convert it; list_runs shows past conversions."),
	)

	h := &handlers{newRegistry: newRegistry, ledger: ledger, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolConvert, Handler: h.convert},
		server.ServerTool{Tool: toolListSources, Handler: h.listSources},
		server.ServerTool{Tool: toolInspectExport, Handler: h.inspectExport},
		server.ServerTool{Tool: toolListRuns, Handler: h.listRuns},
	)

	s.AddResources(
		server.ServerResource{Resource: resSources, Handler: h.sources},
	)

	return s
}

// ServeStdio blocks serving s over stdin and stdout until the client closes
// the stream.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	newRegistry RegistryFunc
	ledger      *storage.DB
	log         *slog.Logger
}

// --- Resource definitions ---

var resSources = mcp.NewResource(
	"fitbit2oscar://sources",
	"Supported Sources",
	mcp.WithResourceDescription("Export formats the converter reads and the data kinds each provides"),
	mcp.WithMIMEType("application/json"),
)
