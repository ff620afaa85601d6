package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcplens/mcplens/internal/domain/proxy"
	"github.com/mcplens/mcplens/internal/port/outbound"
	"github.com/mcplens/mcplens/internal/telemetry"
)

// Dispatcher routes qualified tool calls to upstream sessions, applies the
// per-call timeout, and runs the response interceptor on the way back.
type Dispatcher struct {
	pool        *SessionPool
	resolver    *proxy.NameResolver
	interceptor *proxy.Interceptor
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	timeout     time.Duration
}

// NewDispatcher builds a dispatcher. timeout bounds each upstream call; it
// combines with any deadline already on the caller's context.
func NewDispatcher(pool *SessionPool, resolver *proxy.NameResolver, interceptor *proxy.Interceptor, metrics *telemetry.Metrics, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pool:        pool,
		resolver:    resolver,
		interceptor: interceptor,
		metrics:     metrics,
		logger:      logger,
		timeout:     timeout,
	}
}

// Dispatch resolves a qualified name, forwards the call, and intercepts the
// response for the calling agent. Arguments pass through verbatim.
func (d *Dispatcher) Dispatch(ctx context.Context, agentID, qualified string, args json.RawMessage) (*mcp.CallToolResult, error) {
	upstream, native, err := d.resolver.Resolve(qualified)
	if err != nil {
		return nil, err
	}

	res, err := d.CallUpstream(ctx, upstream, native, args)
	if err != nil {
		return nil, err
	}

	if !res.IsError {
		d.intercept(agentID, qualified, args, res)
	}
	return res, nil
}

// CallUpstream forwards a native tool call to a ready upstream session
// without interception. Fresh-mode proxy tools use this to obtain the full
// response before caching it themselves.
func (d *Dispatcher) CallUpstream(ctx context.Context, upstream, native string, args json.RawMessage) (*mcp.CallToolResult, error) {
	conn, err := d.pool.Conn(upstream)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	callID := uuid.NewString()
	d.logger.Debug("dispatching tool call",
		"call_id", callID,
		"upstream", upstream,
		"tool", native)

	start := time.Now()
	res, err := conn.CallTool(callCtx, native, args)
	elapsed := time.Since(start)

	if d.metrics != nil {
		d.metrics.ToolCallDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
	}

	if err != nil {
		if d.metrics != nil {
			d.metrics.ToolCallsTotal.WithLabelValues(upstream, "error").Inc()
		}
		d.logger.Warn("tool call failed",
			"call_id", callID,
			"upstream", upstream,
			"tool", native,
			"duration", elapsed,
			"error", err)
		return nil, d.classifyCallError(conn, upstream, native, err)
	}

	if d.metrics != nil {
		d.metrics.ToolCallsTotal.WithLabelValues(upstream, "ok").Inc()
	}
	d.logger.Debug("tool call completed",
		"call_id", callID,
		"upstream", upstream,
		"tool", native,
		"duration", elapsed,
		"is_error", res.IsError)
	return res, nil
}

// classifyCallError maps a transport failure onto the client-facing error
// taxonomy.
func (d *Dispatcher) classifyCallError(conn outbound.UpstreamConn, upstream, native string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return proxy.Wrap(proxy.KindUpstreamTimeout, err, "call to %s_%s exceeded %s", upstream, native, d.timeout)
	}
	select {
	case <-conn.Done():
		return proxy.Wrap(proxy.KindUpstreamCrashed, err, "upstream %q terminated during call to %q", upstream, native)
	default:
	}
	return proxy.Wrap(proxy.KindUpstreamError, err, "upstream %q rejected call to %q", upstream, native)
}

// intercept runs the response interceptor over all-text results, replacing
// the content in place when truncation applies. Mixed or binary content
// passes through untouched.
func (d *Dispatcher) intercept(agentID, qualified string, args json.RawMessage, res *mcp.CallToolResult) {
	if len(res.Content) == 0 {
		return
	}
	texts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		tc, ok := c.(*mcp.TextContent)
		if !ok {
			return
		}
		texts = append(texts, tc.Text)
	}

	joined := strings.Join(texts, "\n")
	reply, truncated := d.interceptor.Intercept(agentID, qualified, args, joined)
	if !truncated {
		return
	}

	res.Content = []mcp.Content{&mcp.TextContent{Text: reply}}
	if d.metrics != nil {
		d.metrics.TruncationsTotal.Inc()
	}
}
