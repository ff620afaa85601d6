package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcplens/mcplens/internal/cache"
	"github.com/mcplens/mcplens/internal/domain/proxy"
	"github.com/mcplens/mcplens/internal/processor"
	"github.com/mcplens/mcplens/internal/telemetry"
)

// FilterArgs are the arguments of the proxy_filter tool.
type FilterArgs struct {
	CacheID   string         `json:"cache_id,omitempty" jsonschema:"handle of a cached response to filter"`
	Tool      string         `json:"tool,omitempty" jsonschema:"qualified tool to call fresh instead of using cache_id"`
	Arguments map[string]any `json:"arguments,omitempty" jsonschema:"arguments for the fresh tool call"`
	Fields    []string       `json:"fields" jsonschema:"field paths to project, e.g. users.name or orders[]"`
	Mode      string         `json:"mode,omitempty" jsonschema:"include or exclude, default include"`
}

// SearchArgs are the arguments of the proxy_search tool.
type SearchArgs struct {
	CacheID         string         `json:"cache_id,omitempty" jsonschema:"handle of a cached response to search"`
	Tool            string         `json:"tool,omitempty" jsonschema:"qualified tool to call fresh instead of using cache_id"`
	Arguments       map[string]any `json:"arguments,omitempty" jsonschema:"arguments for the fresh tool call"`
	Pattern         string         `json:"pattern" jsonschema:"search pattern or query"`
	Mode            string         `json:"mode,omitempty" jsonschema:"regex, bm25, fuzzy, or context; default regex"`
	CaseInsensitive bool           `json:"case_insensitive,omitempty"`
	Multiline       bool           `json:"multiline,omitempty"`
	MaxResults      int            `json:"max_results,omitempty"`
	ContextLines    int            `json:"context_lines,omitempty"`
	TopK            int            `json:"top_k,omitempty" jsonschema:"bm25 only, default 5"`
	FuzzyThreshold  *float64       `json:"fuzzy_threshold,omitempty" jsonschema:"fuzzy only, similarity floor in [0,1], default 0.7"`
}

// ExploreArgs are the arguments of the proxy_explore tool.
type ExploreArgs struct {
	CacheID    string         `json:"cache_id,omitempty" jsonschema:"handle of a cached response to explore"`
	Tool       string         `json:"tool,omitempty" jsonschema:"qualified tool to call fresh instead of using cache_id"`
	Arguments  map[string]any `json:"arguments,omitempty" jsonschema:"arguments for the fresh tool call"`
	MaxDepth   int            `json:"max_depth,omitempty" jsonschema:"structure depth to descend, default 3"`
	SampleSize int            `json:"sample_size,omitempty" jsonschema:"array elements to sample, default 3"`
	ListFields bool           `json:"list_fields,omitempty" jsonschema:"emit a flat dotted field path listing instead of the structure summary"`
}

// CacheStatsArgs are the arguments of the proxy_cache_stats tool.
type CacheStatsArgs struct{}

// searchModes is the proxy_search mode enum.
var searchModes = map[string]bool{
	"":        true,
	"regex":   true,
	"bm25":    true,
	"fuzzy":   true,
	"context": true,
}

// ProxyTools serves the proxy's own tools over the cache and dispatcher.
// Each tool resolves its content (cached or fresh), runs the processor
// pipeline, and appends a metadata trailer carrying the cache handle.
type ProxyTools struct {
	cache      *cache.Store
	dispatcher *Dispatcher
	pipeline   *processor.Pipeline
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// NewProxyTools builds the proxy tool service. The pipeline carries every
// processor; params gating selects the ones that run.
func NewProxyTools(store *cache.Store, dispatcher *Dispatcher, metrics *telemetry.Metrics, logger *slog.Logger) *ProxyTools {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyTools{
		cache:      store,
		dispatcher: dispatcher,
		pipeline: processor.NewPipeline(logger,
			processor.Projection{},
			processor.RegexSearch{},
			processor.BM25Search{},
			processor.FuzzySearch{},
			processor.ContextSearch{},
			processor.Explore{},
		),
		metrics: metrics,
		logger:  logger,
	}
}

// Filter runs field projection over cached or fresh content.
func (t *ProxyTools) Filter(ctx context.Context, agentID string, args FilterArgs) (string, error) {
	if err := validateSource(args.CacheID, args.Tool); err != nil {
		return "", err
	}
	if len(args.Fields) == 0 {
		return "", proxy.Errorf(proxy.KindBadArguments, "fields must not be empty")
	}
	switch args.Mode {
	case "", "include", "exclude":
	default:
		return "", proxy.Errorf(proxy.KindBadArguments, "mode must be include or exclude, got %q", args.Mode)
	}

	content, handle, err := t.resolveContent(ctx, agentID, args.CacheID, args.Tool, args.Arguments)
	if err != nil {
		return "", err
	}

	params := processor.Params{"fields": args.Fields}
	if args.Mode != "" {
		params["mode"] = args.Mode
	}
	return t.run("proxy_filter", content, handle, params), nil
}

// Search runs one of the four search modes over cached or fresh content.
func (t *ProxyTools) Search(ctx context.Context, agentID string, args SearchArgs) (string, error) {
	if err := validateSource(args.CacheID, args.Tool); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Pattern) == "" {
		return "", proxy.Errorf(proxy.KindBadArguments, "pattern must not be empty")
	}
	if !searchModes[args.Mode] {
		return "", proxy.Errorf(proxy.KindBadArguments, "mode must be regex, bm25, fuzzy, or context, got %q", args.Mode)
	}
	if args.MaxResults < 0 || args.ContextLines < 0 || args.TopK < 0 {
		return "", proxy.Errorf(proxy.KindBadArguments, "max_results, context_lines, and top_k must not be negative")
	}
	if args.FuzzyThreshold != nil && (*args.FuzzyThreshold < 0 || *args.FuzzyThreshold > 1) {
		return "", proxy.Errorf(proxy.KindBadArguments, "fuzzy_threshold must be in [0, 1], got %v", *args.FuzzyThreshold)
	}

	content, handle, err := t.resolveContent(ctx, agentID, args.CacheID, args.Tool, args.Arguments)
	if err != nil {
		return "", err
	}

	params := processor.Params{"pattern": args.Pattern}
	if args.Mode != "" {
		params["search_mode"] = args.Mode
	}
	if args.CaseInsensitive {
		params["case_insensitive"] = true
	}
	if args.Multiline {
		params["multiline"] = true
	}
	if args.MaxResults > 0 {
		params["max_results"] = args.MaxResults
	}
	if args.ContextLines > 0 {
		params["context_lines"] = args.ContextLines
	}
	if args.TopK > 0 {
		params["top_k"] = args.TopK
	}
	if args.FuzzyThreshold != nil {
		params["fuzzy_threshold"] = *args.FuzzyThreshold
	}
	return t.run("proxy_search", content, handle, params), nil
}

// Explore summarizes the structure of cached or fresh content.
func (t *ProxyTools) Explore(ctx context.Context, agentID string, args ExploreArgs) (string, error) {
	if err := validateSource(args.CacheID, args.Tool); err != nil {
		return "", err
	}
	if args.MaxDepth < 0 || args.SampleSize < 0 {
		return "", proxy.Errorf(proxy.KindBadArguments, "max_depth and sample_size must not be negative")
	}

	content, handle, err := t.resolveContent(ctx, agentID, args.CacheID, args.Tool, args.Arguments)
	if err != nil {
		return "", err
	}

	params := processor.Params{"explore": true}
	if args.MaxDepth > 0 {
		params["max_depth"] = args.MaxDepth
	}
	if args.SampleSize > 0 {
		params["sample_size"] = args.SampleSize
	}
	if args.ListFields {
		params["list_fields"] = true
	}
	return t.run("proxy_explore", content, handle, params), nil
}

// CacheStats reports the cache's live entry and byte counts per agent.
func (t *ProxyTools) CacheStats(context.Context, string, CacheStatsArgs) (string, error) {
	stats := t.cache.Stats()
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal cache stats: %w", err)
	}
	if t.metrics != nil {
		t.metrics.CacheEntries.Set(float64(stats.TotalEntries))
		t.metrics.CacheBytes.Set(float64(stats.TotalBytes))
	}
	return string(out), nil
}

// validateSource enforces the cached-or-fresh exclusivity rule.
func validateSource(cacheID, tool string) error {
	switch {
	case cacheID != "" && tool != "":
		return proxy.Errorf(proxy.KindBadArguments, "cache_id and tool are mutually exclusive")
	case cacheID == "" && tool == "":
		return proxy.Errorf(proxy.KindBadArguments, "either cache_id or tool is required")
	}
	return nil
}

// resolveContent fetches the content to process. Cached mode looks up the
// handle; fresh mode calls the underlying tool and caches the full response,
// reusing an existing entry when the same call is already cached.
func (t *ProxyTools) resolveContent(ctx context.Context, agentID, cacheID, tool string, arguments map[string]any) (content, handle string, err error) {
	if cacheID != "" {
		entry, err := t.cache.Get(cacheID)
		if err != nil {
			t.countLookup(err)
			return "", "", err
		}
		t.countLookup(nil)
		return entry.Content, entry.Handle(), nil
	}

	// json.Marshal sorts map keys, so equal argument sets produce equal
	// source keys regardless of client key order.
	rawArgs, err := json.Marshal(arguments)
	if err != nil {
		return "", "", proxy.Wrap(proxy.KindBadArguments, err, "arguments are not serializable")
	}
	if arguments == nil {
		rawArgs = json.RawMessage("{}")
	}

	if entry, ok := t.cache.FindBySource(agentID, tool, rawArgs); ok {
		t.logger.Debug("fresh call served from cache",
			"tool", tool,
			"agent", agentID,
			"cache_id", entry.Handle())
		return entry.Content, entry.Handle(), nil
	}

	upstream, native, err := t.dispatcher.resolver.Resolve(tool)
	if err != nil {
		return "", "", err
	}
	res, err := t.dispatcher.CallUpstream(ctx, upstream, native, rawArgs)
	if err != nil {
		return "", "", err
	}
	text := textOf(res)
	if res.IsError {
		return "", "", proxy.Errorf(proxy.KindUpstreamError, "tool %q returned an error: %s", tool, text)
	}

	handle, err = t.cache.Put(agentID, text, tool, rawArgs)
	if err != nil {
		// Process the response anyway; only the follow-up handle is lost.
		t.logger.Warn("caching fresh response failed",
			"tool", tool,
			"agent", agentID,
			"error", err)
		return text, "", nil
	}
	return text, handle, nil
}

// run executes the pipeline and appends the metadata trailer. Processor
// failures are non-fatal: they surface in the trailer and are logged here
// under the ProcessorError kind.
func (t *ProxyTools) run(tool, content, handle string, params processor.Params) string {
	if t.metrics != nil {
		t.metrics.ProcessorRuns.WithLabelValues(tool).Inc()
	}
	res := t.pipeline.Run(content, params)
	if errs, ok := res.Metadata["errors"].([]string); ok {
		t.logger.Warn("pipeline finished with processor errors",
			"tool", tool,
			"error", proxy.Errorf(proxy.KindProcessorError, "%s", strings.Join(errs, "; ")))
	}
	return res.Content + resultTrailer(handle, res)
}

// resultTrailer renders the fixed-form metadata line appended to processed
// output. Distinct in shape from the truncation trailer.
func resultTrailer(handle string, res processor.Result) string {
	var parts []string
	if handle != "" {
		parts = append(parts, fmt.Sprintf("cache_id=%q", handle))
	}
	if applied, ok := res.Metadata["applied"].([]string); ok {
		parts = append(parts, "applied: "+strings.Join(applied, ","))
	}
	parts = append(parts, fmt.Sprintf("size: %d -> %d chars", res.OriginalSize, res.ProcessedSize))
	if errs, ok := res.Metadata["errors"].([]string); ok {
		sort.Strings(errs)
		parts = append(parts, "errors: "+strings.Join(errs, "; "))
	}
	return "\n\n[" + strings.Join(parts, " | ") + "]"
}

// countLookup records a cache lookup outcome.
func (t *ProxyTools) countLookup(err error) {
	if t.metrics == nil {
		return
	}
	switch proxy.KindOf(err) {
	case "":
		t.metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	case proxy.KindCacheExpired:
		t.metrics.CacheLookupsTotal.WithLabelValues("expired").Inc()
	default:
		t.metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}
}

// textOf joins the textual content blocks of a tool result.
func textOf(res *mcp.CallToolResult) string {
	var texts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}
