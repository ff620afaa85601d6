package proxy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// truncationTrailer is the literal template appended to truncated replies.
// Clients pattern-match it, so the form is fixed.
const truncationTrailer = "\n\n[Response truncated. Full content cached. Use cache_id=\"%s\" with proxy_filter, proxy_search, or proxy_explore to access.]"

// CacheInserter is the slice of the cache the interceptor needs.
type CacheInserter interface {
	Put(agentID, content, sourceTool string, sourceArgs json.RawMessage) (handle string, err error)
}

// Interceptor truncates oversized tool responses and caches the full
// content for later exploration through the proxy tools.
type Interceptor struct {
	maxSize      int
	autoTruncate bool
	cache        CacheInserter
	logger       *slog.Logger
}

// NewInterceptor builds an interceptor. maxSize is the response size bound
// in bytes; autoTruncate=false turns interception off entirely.
func NewInterceptor(maxSize int, autoTruncate bool, cache CacheInserter, logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		maxSize:      maxSize,
		autoTruncate: autoTruncate,
		cache:        cache,
		logger:       logger,
	}
}

// Intercept returns the reply to send for a tool response. Oversized content
// is cached in full and replaced by a truncated prefix plus the trailer
// carrying the cache handle. truncated reports whether that happened.
func (ic *Interceptor) Intercept(agentID, sourceTool string, sourceArgs json.RawMessage, content string) (reply string, truncated bool) {
	if !ic.autoTruncate || len(content) <= ic.maxSize {
		return content, false
	}

	handle, err := ic.cache.Put(agentID, content, sourceTool, sourceArgs)
	if err != nil {
		// Without a cached copy the trailer would lie; send the full
		// response instead.
		ic.logger.Warn("cache insert failed, skipping truncation",
			"tool", sourceTool,
			"agent", agentID,
			"size", len(content),
			"error", err)
		return content, false
	}

	prefix := TruncateUTF8(content, ic.maxSize)
	ic.logger.Info("response truncated",
		"tool", sourceTool,
		"agent", agentID,
		"original_size", len(content),
		"truncated_size", len(prefix),
		"cache_id", handle)
	return prefix + fmt.Sprintf(truncationTrailer, handle), true
}

// TruncateUTF8 returns the longest prefix of s not exceeding n bytes that
// ends on a codepoint boundary.
func TruncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
