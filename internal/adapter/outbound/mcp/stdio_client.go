// Package mcp provides the outbound adapter for upstream MCP servers
// spawned as child processes over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcplens/mcplens/internal/port/outbound"
)

// clientInfo identifies the proxy to upstreams during the MCP handshake.
var clientInfo = &sdk.Implementation{Name: "mcplens", Version: "1.0.0"}

// StdioConn owns one upstream child process and its MCP session.
// It implements the outbound.UpstreamConn interface.
type StdioConn struct {
	command string
	args    []string
	env     map[string]string

	mu      sync.Mutex
	session *sdk.ClientSession
	done    chan struct{}
}

// NewStdioConn creates an unconnected upstream wrapper. env entries are
// appended to the proxy's own environment.
func NewStdioConn(command string, args []string, env map[string]string) *StdioConn {
	return &StdioConn{
		command: command,
		args:    args,
		env:     env,
		done:    make(chan struct{}),
	}
}

// Connect spawns the child and performs the MCP handshake. The caller
// bounds the handshake with ctx.
func (c *StdioConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return errors.New("already connected")
	}

	cmd := exec.Command(c.command, c.args...)
	cmd.Env = os.Environ()
	for k, v := range c.env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	// Children may log to stderr; stdout carries the protocol.
	cmd.Stderr = os.Stderr

	client := sdk.NewClient(clientInfo, nil)
	session, err := client.Connect(ctx, &sdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.command, err)
	}
	c.session = session

	go func() {
		session.Wait()
		close(c.done)
	}()
	return nil
}

// ListTools fetches the upstream's native tool catalog.
func (c *StdioConn) ListTools(ctx context.Context) ([]*sdk.Tool, error) {
	session, err := c.liveSession()
	if err != nil {
		return nil, err
	}
	res, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return res.Tools, nil
}

// CallTool invokes a native tool, forwarding args verbatim.
func (c *StdioConn) CallTool(ctx context.Context, name string, args []byte) (*sdk.CallToolResult, error) {
	session, err := c.liveSession()
	if err != nil {
		return nil, err
	}
	return session.CallTool(ctx, &sdk.CallToolParams{
		Name:      name,
		Arguments: rawArgs(args),
	})
}

// Done is closed when the session terminates for any reason.
func (c *StdioConn) Done() <-chan struct{} { return c.done }

// Close shuts the session down, which terminates the child.
func (c *StdioConn) Close() error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	if err := session.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Compile-time check that StdioConn implements the outbound port.
var _ outbound.UpstreamConn = (*StdioConn)(nil)

func (c *StdioConn) liveSession() (*sdk.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, errors.New("not connected")
	}
	return c.session, nil
}

// rawArgs keeps the client's argument bytes untouched. A nil or empty body
// becomes an empty object so the wire message stays valid JSON.
func rawArgs(args []byte) any {
	if len(args) == 0 {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}
