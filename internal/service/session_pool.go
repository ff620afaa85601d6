// Package service wires the domain core to the ports: upstream session
// lifecycle, tool call dispatch, and the proxy's own cache tools.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcplens/mcplens/internal/config"
	"github.com/mcplens/mcplens/internal/domain/proxy"
	"github.com/mcplens/mcplens/internal/port/outbound"
	"github.com/mcplens/mcplens/internal/telemetry"
)

// ConnFactory creates an UpstreamConn for a named upstream spec. The default
// factory builds stdio connections; tests inject fakes.
type ConnFactory func(name string, spec config.UpstreamSpec) outbound.UpstreamConn

// SessionState is the lifecycle state of one upstream session.
type SessionState string

const (
	StateStarting SessionState = "starting"
	StateReady    SessionState = "ready"
	StateFailed   SessionState = "failed"
	StateClosing  SessionState = "closing"
	StateClosed   SessionState = "closed"
)

// UpstreamSession holds the runtime state for a single upstream. Sessions
// that fail to start are kept as tombstones so their state stays reportable.
type UpstreamSession struct {
	name string
	spec config.UpstreamSpec

	mu         sync.Mutex
	state      SessionState
	conn       outbound.UpstreamConn
	tools      []*mcp.Tool
	lastError  string
	readySince time.Time
}

// Name returns the upstream name the session was configured under.
func (s *UpstreamSession) Name() string { return s.name }

// State returns the current lifecycle state and last error.
func (s *UpstreamSession) State() (SessionState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastError
}

// Tools returns the catalog snapshot fetched at startup.
func (s *UpstreamSession) Tools() []*mcp.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools
}

// CatalogEntry pairs an upstream name with one of its native tools.
type CatalogEntry struct {
	Upstream string
	Tool     *mcp.Tool
}

// SessionPool manages the set of upstream sessions: parallel startup with
// per-upstream timeouts, exit monitoring, catalog snapshots, and shutdown.
type SessionPool struct {
	factory  ConnFactory
	resolver *proxy.NameResolver
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*UpstreamSession
	closed   bool
}

// NewSessionPool creates an empty pool. Call StartAll to launch upstreams.
func NewSessionPool(factory ConnFactory, resolver *proxy.NameResolver, metrics *telemetry.Metrics, logger *slog.Logger) *SessionPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionPool{
		factory:  factory,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*UpstreamSession),
	}
}

// StartAll launches every configured upstream in parallel and waits for all
// attempts to settle. Each attempt is bounded by its spec's startup timeout.
// A failed upstream becomes a tombstone rather than aborting startup; the
// return value is the number of sessions that reached Ready.
func (p *SessionPool) StartAll(ctx context.Context, specs map[string]config.UpstreamSpec) int {
	var wg sync.WaitGroup
	for name, spec := range specs {
		sess := &UpstreamSession{
			name:  name,
			spec:  spec,
			state: StateStarting,
		}
		p.mu.Lock()
		p.sessions[name] = sess
		p.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			p.start(ctx, sess)
		}()
	}
	wg.Wait()

	ready := p.ReadyUpstreams()
	p.resolver.SetUpstreams(ready)
	return len(ready)
}

// start performs spawn, handshake, and catalog fetch for one session.
func (p *SessionPool) start(ctx context.Context, sess *UpstreamSession) {
	timeout := time.Duration(sess.spec.StartupTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultStartupTimeoutMs) * time.Millisecond
	}
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn := p.factory(sess.name, sess.spec)

	if err := conn.Connect(startCtx); err != nil {
		_ = conn.Close()
		p.fail(sess, fmt.Sprintf("connect: %v", err))
		return
	}

	tools, err := conn.ListTools(startCtx)
	if err != nil {
		_ = conn.Close()
		p.fail(sess, fmt.Sprintf("list tools: %v", err))
		return
	}

	sess.mu.Lock()
	sess.conn = conn
	sess.tools = tools
	sess.state = StateReady
	sess.lastError = ""
	sess.readySince = time.Now()
	sess.mu.Unlock()

	if p.metrics != nil {
		p.metrics.UpstreamsReady.Inc()
	}
	p.logger.Info("upstream ready", "upstream", sess.name, "tools", len(tools))

	go p.monitor(sess, conn)
}

// fail marks a session as a startup tombstone.
func (p *SessionPool) fail(sess *UpstreamSession, msg string) {
	sess.mu.Lock()
	sess.state = StateFailed
	sess.lastError = msg
	sess.conn = nil
	sess.mu.Unlock()
	p.logger.Error("upstream failed to start", "upstream", sess.name, "error", msg)
}

// monitor blocks until the upstream connection terminates. An exit while the
// session is Ready marks it Failed; exits during Closing are expected.
func (p *SessionPool) monitor(sess *UpstreamSession, conn outbound.UpstreamConn) {
	<-conn.Done()

	sess.mu.Lock()
	if sess.state != StateReady || sess.conn != conn {
		sess.mu.Unlock()
		return
	}
	sess.state = StateFailed
	sess.lastError = "upstream process exited"
	sess.conn = nil
	sess.mu.Unlock()

	if p.metrics != nil {
		p.metrics.UpstreamsReady.Dec()
	}
	p.logger.Warn("upstream exited", "upstream", sess.name)
}

// Conn returns the live connection for an upstream. Failed or never-started
// upstreams yield an UpstreamUnavailable error.
func (p *SessionPool) Conn(upstream string) (outbound.UpstreamConn, error) {
	p.mu.RLock()
	sess, ok := p.sessions[upstream]
	p.mu.RUnlock()
	if !ok {
		return nil, proxy.Errorf(proxy.KindUpstreamUnavailable, "upstream %q is not configured", upstream)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	switch sess.state {
	case StateReady:
		return sess.conn, nil
	case StateFailed:
		return nil, proxy.Errorf(proxy.KindUpstreamUnavailable, "upstream %q is unavailable: %s", upstream, sess.lastError)
	default:
		return nil, proxy.Errorf(proxy.KindUpstreamUnavailable, "upstream %q is %s", upstream, sess.state)
	}
}

// Session returns the session for an upstream, if configured.
func (p *SessionPool) Session(upstream string) (*UpstreamSession, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sess, ok := p.sessions[upstream]
	return sess, ok
}

// ReadyUpstreams returns the names of sessions currently in the Ready state,
// sorted for determinism.
func (p *SessionPool) ReadyUpstreams() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var names []string
	for name, sess := range p.sessions {
		if st, _ := sess.State(); st == StateReady {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Catalog returns the qualified tool catalog across all sessions that
// reached Ready at startup, sorted by upstream then tool name. Sessions that
// failed after startup keep their entries; calls to them fail at dispatch.
func (p *SessionPool) Catalog() []CatalogEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var entries []CatalogEntry
	for name, sess := range p.sessions {
		sess.mu.Lock()
		tools := sess.tools
		sess.mu.Unlock()
		for _, t := range tools {
			entries = append(entries, CatalogEntry{Upstream: name, Tool: t})
		}
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Upstream != entries[b].Upstream {
			return entries[a].Upstream < entries[b].Upstream
		}
		return entries[a].Tool.Name < entries[b].Tool.Name
	})
	return entries
}

// States returns the state and last error of every configured upstream.
func (p *SessionPool) States() map[string]SessionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]SessionStatus, len(p.sessions))
	for name, sess := range p.sessions {
		st, lastErr := sess.State()
		out[name] = SessionStatus{State: st, LastError: lastErr}
	}
	return out
}

// SessionStatus is a reportable snapshot of one session.
type SessionStatus struct {
	State     SessionState `json:"state"`
	LastError string       `json:"lastError,omitempty"`
}

// shutdownGrace bounds how long Shutdown waits for upstreams to exit.
const shutdownGrace = 5 * time.Second

// Shutdown closes all live sessions in parallel and waits up to the grace
// period for the child processes to exit. Safe to call more than once.
func (p *SessionPool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	sessions := make([]*UpstreamSession, 0, len(p.sessions))
	for _, sess := range p.sessions {
		sessions = append(sessions, sess)
	}
	p.mu.Unlock()

	graceCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		sess.mu.Lock()
		conn := sess.conn
		wasReady := sess.state == StateReady
		if wasReady {
			sess.state = StateClosing
		}
		sess.mu.Unlock()

		if conn == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.Close(); err != nil {
				p.logger.Warn("upstream close failed", "upstream", sess.name, "error", err)
			}
			select {
			case <-conn.Done():
			case <-graceCtx.Done():
				p.logger.Warn("upstream did not exit within grace period", "upstream", sess.name)
			}
			sess.mu.Lock()
			sess.state = StateClosed
			sess.conn = nil
			sess.mu.Unlock()
			if wasReady && p.metrics != nil {
				p.metrics.UpstreamsReady.Dec()
			}
		}()
	}
	wg.Wait()
	p.logger.Info("all upstream sessions closed")
}
