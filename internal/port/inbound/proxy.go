// Package inbound defines the inbound port interfaces for the proxy core.
// Inbound adapters (stdio today) call these interfaces.
package inbound

import (
	"context"
)

// Transport is the inbound port for the client-facing side of the proxy.
type Transport interface {
	// Run serves the client connection. Blocks until the context is
	// cancelled or the client disconnects. Returns nil on graceful
	// shutdown, error on failure.
	Run(ctx context.Context) error
}
