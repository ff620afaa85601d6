// Package outbound defines the outbound port interfaces for connecting
// to upstream MCP servers.
package outbound

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UpstreamConn is the outbound port for one upstream MCP server. Adapters
// implement this to support different transports; the stdio adapter spawns
// the server as a child process.
type UpstreamConn interface {
	// Connect launches the upstream and performs the MCP handshake.
	Connect(ctx context.Context) error

	// ListTools fetches the upstream's native tool catalog.
	ListTools(ctx context.Context) ([]*mcp.Tool, error)

	// CallTool invokes a native tool. args is forwarded verbatim.
	CallTool(ctx context.Context, name string, args []byte) (*mcp.CallToolResult, error)

	// Done is closed when the underlying connection terminates, whether by
	// Close or by the child exiting on its own.
	Done() <-chan struct{}

	// Close terminates the upstream connection and cleans up resources.
	Close() error
}
