// Package stdio serves the proxy's MCP frontend over stdin/stdout. It
// registers the qualified upstream tool catalog plus the proxy's own tools
// on an MCP server and runs it on the stdio transport.
package stdio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcplens/mcplens/internal/domain/proxy"
	"github.com/mcplens/mcplens/internal/port/inbound"
	"github.com/mcplens/mcplens/internal/service"
)

// serverInfo identifies the proxy to connecting clients.
var serverInfo = &mcp.Implementation{Name: "mcplens", Version: "1.0.0"}

// Transport is the inbound adapter exposing the aggregated catalog on stdio.
type Transport struct {
	pool       *service.SessionPool
	dispatcher *service.Dispatcher
	tools      *service.ProxyTools
	identity   proxy.AgentIdentifier
	logger     *slog.Logger
}

// NewTransport builds the stdio transport over the assembled services.
func NewTransport(pool *service.SessionPool, dispatcher *service.Dispatcher, tools *service.ProxyTools, identity proxy.AgentIdentifier, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		pool:       pool,
		dispatcher: dispatcher,
		tools:      tools,
		identity:   identity,
		logger:     logger,
	}
}

// Run serves MCP on stdin/stdout until the context is cancelled or the
// client disconnects.
func (t *Transport) Run(ctx context.Context) error {
	return t.Server().Run(ctx, &mcp.StdioTransport{})
}

// Server builds the MCP server with the full tool catalog registered.
// Exposed so tests can connect it to an in-memory transport.
func (t *Transport) Server() *mcp.Server {
	server := mcp.NewServer(serverInfo, nil)

	for _, entry := range t.pool.Catalog() {
		t.registerUpstreamTool(server, entry)
	}
	t.registerProxyTools(server)
	return server
}

// registerUpstreamTool exposes one native tool under its qualified name.
// The input schema passes through unchanged so clients see the upstream's
// own contract.
func (t *Transport) registerUpstreamTool(server *mcp.Server, entry service.CatalogEntry) {
	qualified := proxy.QualifiedName(entry.Upstream, entry.Tool.Name)
	cloned := cloneTool(entry.Tool)
	cloned.Name = qualified
	cloned.Description = fmt.Sprintf("[%s] %s", entry.Upstream, entry.Tool.Description)

	server.AddTool(cloned, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := t.dispatcher.Dispatch(ctx, t.agentFor(req), qualified, req.Params.Arguments)
		if err != nil {
			return errorResult(err), nil
		}
		return res, nil
	})
}

// registerProxyTools adds the proxy's own tools with inferred schemas.
func (t *Transport) registerProxyTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "proxy_filter",
		Description: "Project fields out of a cached or fresh tool response. " +
			"Pass cache_id from a truncated response, or tool+arguments to call fresh. " +
			"fields uses dotted paths (users.name), [] for array elements, * as wildcard, and _keys for key listing.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args service.FilterArgs) (*mcp.CallToolResult, any, error) {
		out, err := t.tools.Filter(ctx, t.agentFor(req), args)
		return proxyToolResult(out, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "proxy_search",
		Description: "Search a cached or fresh tool response. " +
			"Modes: regex (line matches with optional context_lines), bm25 (ranked paragraphs), " +
			"fuzzy (approximate matches), context (paragraphs containing matches).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args service.SearchArgs) (*mcp.CallToolResult, any, error) {
		out, err := t.tools.Search(ctx, t.agentFor(req), args)
		return proxyToolResult(out, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name: "proxy_explore",
		Description: "Summarize the structure of a cached or fresh JSON response: " +
			"keys, types, array lengths, and sampled values, down to max_depth. " +
			"Set list_fields for a flat dotted field path listing instead.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args service.ExploreArgs) (*mcp.CallToolResult, any, error) {
		out, err := t.tools.Explore(ctx, t.agentFor(req), args)
		return proxyToolResult(out, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "proxy_cache_stats",
		Description: "Report response cache usage: entries, bytes, and access counts per agent.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args service.CacheStatsArgs) (*mcp.CallToolResult, any, error) {
		out, err := t.tools.CacheStats(ctx, t.agentFor(req), args)
		return proxyToolResult(out, err)
	})
}

// agentFor assigns the calling session its synthetic agent identity. Stdio
// serves a single client, so in practice this is always the first agent.
func (t *Transport) agentFor(req *mcp.CallToolRequest) string {
	return t.identity.AgentID(fmt.Sprintf("%p", req.Session))
}

// proxyToolResult converts a proxy tool outcome into a CallToolResult.
// Classified errors become tool errors rather than protocol errors so the
// client sees the error kind in the content.
func proxyToolResult(out string, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return errorResult(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out}},
	}, nil, nil
}

// errorResult renders a classified error as a tool error result.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

// cloneTool copies a tool definition so renaming does not mutate the
// upstream's catalog snapshot.
func cloneTool(tool *mcp.Tool) *mcp.Tool {
	return &mcp.Tool{
		Name:         tool.Name,
		Title:        tool.Title,
		Description:  tool.Description,
		InputSchema:  tool.InputSchema,
		OutputSchema: tool.OutputSchema,
		Annotations:  tool.Annotations,
		Meta:         tool.Meta,
		Icons:        tool.Icons,
	}
}

var _ inbound.Transport = (*Transport)(nil)
