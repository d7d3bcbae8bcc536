package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mediscribe/scribe/internal/config"
	"github.com/mediscribe/scribe/internal/note"
	"github.com/mediscribe/scribe/internal/store"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"visit_list": {
		def:     visitListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVisitList },
	},
	"visit_fetch": {
		def:     visitFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVisitFetch },
	},
	"note_synthesize": {
		def:     noteSynthesizeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteSynthesize },
	},
	"terms_extract": {
		def:     termsExtractToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTermsExtract },
	},
	"note_export": {
		def:     noteExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNoteExport },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the visit and note tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(st *store.Store, synth note.Synthesizer, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"scribe",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(st, synth)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(st *store.Store, synth note.Synthesizer, cfg *config.Config, version string) error {
	s := NewServer(st, synth, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
