package proxy

import (
	"sort"
	"strings"
	"sync"
)

// ProxyUpstream is the synthetic upstream name the proxy's own tools live
// under.
const ProxyUpstream = "proxy"

// QualifiedName joins an upstream name and a native tool name into the
// client-visible form.
func QualifiedName(upstream, native string) string {
	return upstream + "_" + native
}

// NameResolver maps qualified tool names back to (upstream, native) pairs.
//
// Upstream names may themselves contain underscores, so splitting on the
// separator is ambiguous. Resolution instead matches the qualified name
// against the known upstream set, preferring the longest "{upstream}_"
// prefix.
type NameResolver struct {
	mu        sync.RWMutex
	upstreams []string // sorted by descending length
}

// NewNameResolver builds a resolver over the given upstream names.
func NewNameResolver(upstreams []string) *NameResolver {
	r := &NameResolver{}
	r.SetUpstreams(upstreams)
	return r
}

// SetUpstreams replaces the known upstream set.
func (r *NameResolver) SetUpstreams(upstreams []string) {
	names := make([]string, len(upstreams))
	copy(names, upstreams)
	sort.Slice(names, func(a, b int) bool {
		if len(names[a]) != len(names[b]) {
			return len(names[a]) > len(names[b])
		}
		return names[a] < names[b]
	})

	r.mu.Lock()
	r.upstreams = names
	r.mu.Unlock()
}

// Resolve splits a qualified name into its upstream and native parts.
// Returns an UnknownTool error when no upstream prefix matches.
func (r *NameResolver) Resolve(qualified string) (upstream, native string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.upstreams {
		prefix := u + "_"
		if strings.HasPrefix(qualified, prefix) && len(qualified) > len(prefix) {
			return u, qualified[len(prefix):], nil
		}
	}
	return "", "", Errorf(KindUnknownTool, "tool %q does not match any upstream", qualified)
}

// IsProxyTool reports whether a qualified name belongs to the proxy's own
// tool set.
func IsProxyTool(qualified string) bool {
	return strings.HasPrefix(qualified, ProxyUpstream+"_")
}
