package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/mcplens/mcplens/internal/config"
	"github.com/mcplens/mcplens/internal/domain/proxy"
	"github.com/mcplens/mcplens/internal/port/outbound"
	"github.com/mcplens/mcplens/internal/telemetry"
)

// --- Fake UpstreamConn for service tests ---

type fakeConn struct {
	mu           sync.Mutex
	connectErr   error
	connectBlock bool // Connect blocks until ctx is done
	listErr      error
	tools        []*mcp.Tool
	callFn       func(ctx context.Context, name string, args []byte) (*mcp.CallToolResult, error)
	calls        []string
	done         chan struct{}
	closed       bool
}

func newFakeConn(tools ...*mcp.Tool) *fakeConn {
	return &fakeConn{tools: tools, done: make(chan struct{})}
}

func (c *fakeConn) Connect(ctx context.Context) error {
	if c.connectBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.connectErr
}

func (c *fakeConn) ListTools(context.Context) ([]*mcp.Tool, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.tools, nil
}

func (c *fakeConn) CallTool(ctx context.Context, name string, args []byte) (*mcp.CallToolResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	fn := c.callFn
	c.mu.Unlock()
	if fn != nil {
		return fn(ctx, name, args)
	}
	return textResult("ok"), nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// simulateCrash closes the done channel as if the child exited on its own.
func (c *fakeConn) simulateCrash() { _ = c.Close() }

func (c *fakeConn) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

var _ outbound.UpstreamConn = (*fakeConn)(nil)

// --- Test helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics(prometheus.NewRegistry())
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func tool(name string) *mcp.Tool { return &mcp.Tool{Name: name} }

// factoryFor returns a ConnFactory serving conns from a fixed map.
func factoryFor(conns map[string]*fakeConn) ConnFactory {
	return func(name string, _ config.UpstreamSpec) outbound.UpstreamConn {
		return conns[name]
	}
}

func specs(names ...string) map[string]config.UpstreamSpec {
	out := make(map[string]config.UpstreamSpec, len(names))
	for _, n := range names {
		out[n] = config.UpstreamSpec{Command: "true", StartupTimeoutMs: 5000}
	}
	return out
}

// waitForState polls until the session reaches want or the deadline passes.
func waitForState(t *testing.T, pool *SessionPool, upstream string, want SessionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, ok := pool.Session(upstream)
		if ok {
			if st, _ := sess.State(); st == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("upstream %q did not reach state %q", upstream, want)
}

// --- SessionPool tests ---

func TestStartAllReady(t *testing.T) {
	defer goleak.VerifyNone(t)

	conns := map[string]*fakeConn{
		"fs":    newFakeConn(tool("read_file"), tool("write_file")),
		"jira2": newFakeConn(tool("search")),
	}
	resolver := proxy.NewNameResolver(nil)
	pool := NewSessionPool(factoryFor(conns), resolver, testMetrics(), testLogger())
	defer pool.Shutdown(context.Background())

	ready := pool.StartAll(context.Background(), specs("fs", "jira2"))
	if ready != 2 {
		t.Fatalf("ready = %d, want 2", ready)
	}

	names := pool.ReadyUpstreams()
	if len(names) != 2 || names[0] != "fs" || names[1] != "jira2" {
		t.Fatalf("ReadyUpstreams = %v", names)
	}

	catalog := pool.Catalog()
	if len(catalog) != 3 {
		t.Fatalf("catalog has %d entries, want 3", len(catalog))
	}
	// Sorted by upstream, then tool name.
	if catalog[0].Upstream != "fs" || catalog[0].Tool.Name != "read_file" {
		t.Errorf("catalog[0] = %s/%s", catalog[0].Upstream, catalog[0].Tool.Name)
	}
	if catalog[2].Upstream != "jira2" || catalog[2].Tool.Name != "search" {
		t.Errorf("catalog[2] = %s/%s", catalog[2].Upstream, catalog[2].Tool.Name)
	}

	up, native, err := resolver.Resolve("fs_read_file")
	if err != nil || up != "fs" || native != "read_file" {
		t.Errorf("Resolve(fs_read_file) = %q, %q, %v", up, native, err)
	}
}

func TestStartAllConnectFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	conns := map[string]*fakeConn{
		"good": newFakeConn(tool("a")),
		"bad":  newFakeConn(),
	}
	conns["bad"].connectErr = errors.New("spawn failed")

	pool := NewSessionPool(factoryFor(conns), proxy.NewNameResolver(nil), testMetrics(), testLogger())
	defer pool.Shutdown(context.Background())

	ready := pool.StartAll(context.Background(), specs("good", "bad"))
	if ready != 1 {
		t.Fatalf("ready = %d, want 1", ready)
	}

	states := pool.States()
	if states["bad"].State != StateFailed {
		t.Errorf("bad state = %q, want failed", states["bad"].State)
	}
	if states["bad"].LastError == "" {
		t.Error("bad session has no last error")
	}
	if states["good"].State != StateReady {
		t.Errorf("good state = %q, want ready", states["good"].State)
	}

	if _, err := pool.Conn("bad"); !proxy.IsKind(err, proxy.KindUpstreamUnavailable) {
		t.Errorf("Conn(bad) error = %v, want UpstreamUnavailable", err)
	}
}

func TestStartAllListToolsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newFakeConn()
	conn.listErr = errors.New("handshake broke")

	pool := NewSessionPool(factoryFor(map[string]*fakeConn{"fs": conn}), proxy.NewNameResolver(nil), testMetrics(), testLogger())
	defer pool.Shutdown(context.Background())

	if ready := pool.StartAll(context.Background(), specs("fs")); ready != 0 {
		t.Fatalf("ready = %d, want 0", ready)
	}
	if !conn.closed {
		t.Error("conn not closed after list failure")
	}
}

func TestStartupTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newFakeConn()
	conn.connectBlock = true

	pool := NewSessionPool(factoryFor(map[string]*fakeConn{"slow": conn}), proxy.NewNameResolver(nil), testMetrics(), testLogger())
	defer pool.Shutdown(context.Background())

	sp := map[string]config.UpstreamSpec{
		"slow": {Command: "true", StartupTimeoutMs: 50},
	}
	if ready := pool.StartAll(context.Background(), sp); ready != 0 {
		t.Fatalf("ready = %d, want 0", ready)
	}

	st := pool.States()["slow"]
	if st.State != StateFailed {
		t.Errorf("state = %q, want failed", st.State)
	}
}

func TestMonitorMarksFailedOnExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newFakeConn(tool("a"))
	pool := NewSessionPool(factoryFor(map[string]*fakeConn{"fs": conn}), proxy.NewNameResolver(nil), testMetrics(), testLogger())
	defer pool.Shutdown(context.Background())

	if ready := pool.StartAll(context.Background(), specs("fs")); ready != 1 {
		t.Fatal("upstream did not start")
	}

	conn.simulateCrash()
	waitForState(t, pool, "fs", StateFailed)

	if _, err := pool.Conn("fs"); !proxy.IsKind(err, proxy.KindUpstreamUnavailable) {
		t.Errorf("Conn after crash = %v, want UpstreamUnavailable", err)
	}

	// Tool catalog stays registered; only dispatch fails.
	if len(pool.Catalog()) != 1 {
		t.Error("catalog lost entries after crash")
	}
}

func TestConnUnknownUpstream(t *testing.T) {
	pool := NewSessionPool(factoryFor(nil), proxy.NewNameResolver(nil), testMetrics(), testLogger())
	if _, err := pool.Conn("nope"); !proxy.IsKind(err, proxy.KindUpstreamUnavailable) {
		t.Errorf("error = %v, want UpstreamUnavailable", err)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := newFakeConn(tool("a"))
	pool := NewSessionPool(factoryFor(map[string]*fakeConn{"fs": conn}), proxy.NewNameResolver(nil), testMetrics(), testLogger())
	pool.StartAll(context.Background(), specs("fs"))

	pool.Shutdown(context.Background())
	pool.Shutdown(context.Background())

	if !conn.closed {
		t.Error("conn not closed")
	}
	if st := pool.States()["fs"]; st.State != StateClosed {
		t.Errorf("state = %q, want closed", st.State)
	}
}
