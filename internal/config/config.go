// Package config loads and validates the proxy configuration (mcp.json).
//
// The file has two sections: mcpServers, the upstream MCP servers to spawn,
// and proxySettings, the interception and cache tuning knobs. A missing
// proxySettings section uses defaults; a missing file is a startup error.
package config

// Defaults for proxySettings.
const (
	DefaultMaxResponseSize       = 8000
	DefaultCacheMaxEntries       = 50
	DefaultCacheTTLSeconds       = 300
	DefaultCacheMaxBytes         = 100 << 20
	DefaultCacheMaxAgents        = 1000
	DefaultStartupTimeoutMs      = 30_000
	DefaultRequestTimeoutSeconds = 60
)

// ProxyConfig is the top-level configuration.
type ProxyConfig struct {
	// MCPServers maps upstream names to their launch specs. Names must
	// match [A-Za-z0-9_-]{1,100}.
	MCPServers map[string]UpstreamSpec `json:"mcpServers" mapstructure:"mcpServers" validate:"omitempty,dive"`

	// ProxySettings tunes interception and caching.
	ProxySettings ProxySettings `json:"proxySettings" mapstructure:"proxySettings"`
}

// UpstreamSpec describes one upstream child process. Immutable after load.
type UpstreamSpec struct {
	// Command is the executable to spawn.
	Command string `json:"command" mapstructure:"command" validate:"required"`

	// Args are passed to the command.
	Args []string `json:"args" mapstructure:"args"`

	// Env entries are appended to the proxy's environment for the child.
	Env map[string]string `json:"env" mapstructure:"env"`

	// StartupTimeoutMs bounds spawn + handshake + catalog fetch.
	// Defaults to 30000.
	StartupTimeoutMs int `json:"startupTimeoutMs" mapstructure:"startupTimeoutMs" validate:"omitempty,gt=0"`
}

// ProxySettings tunes the response interceptor and cache.
type ProxySettings struct {
	// MaxResponseSize is the size bound in characters above which responses
	// are truncated and cached. Defaults to 8000.
	MaxResponseSize int `json:"maxResponseSize" mapstructure:"maxResponseSize" validate:"omitempty,gt=0"`

	// CacheMaxEntries caps live cache entries per agent. Defaults to 50.
	CacheMaxEntries int `json:"cacheMaxEntries" mapstructure:"cacheMaxEntries" validate:"omitempty,gt=0"`

	// CacheTTLSeconds is the entry lifetime. Defaults to 300.
	CacheTTLSeconds int `json:"cacheTTLSeconds" mapstructure:"cacheTTLSeconds" validate:"omitempty,gt=0"`

	// CacheMaxBytes caps total cached bytes per agent. Defaults to 100 MiB.
	CacheMaxBytes int64 `json:"cacheMaxBytes" mapstructure:"cacheMaxBytes" validate:"omitempty,gt=0"`

	// CacheMaxAgents caps the number of distinct agents. Defaults to 1000.
	CacheMaxAgents int `json:"cacheMaxAgents" mapstructure:"cacheMaxAgents" validate:"omitempty,gt=0"`

	// EnableAutoTruncation turns response interception on. Defaults to true;
	// a nil pointer means "not set".
	EnableAutoTruncation *bool `json:"enableAutoTruncation" mapstructure:"enableAutoTruncation"`

	// RequestTimeoutSeconds bounds each upstream tool call. Defaults to 60.
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds" mapstructure:"requestTimeoutSeconds" validate:"omitempty,gt=0"`

	// MetricsAddr, when set, serves Prometheus metrics on this address
	// (e.g. "127.0.0.1:9090"). Empty disables the listener.
	MetricsAddr string `json:"metricsAddr" mapstructure:"metricsAddr" validate:"omitempty,hostname_port"`
}

// AutoTruncate resolves the EnableAutoTruncation default.
func (s ProxySettings) AutoTruncate() bool {
	if s.EnableAutoTruncation == nil {
		return true
	}
	return *s.EnableAutoTruncation
}

// SetDefaults applies default values to unset fields.
func (c *ProxyConfig) SetDefaults() {
	if c.ProxySettings.MaxResponseSize == 0 {
		c.ProxySettings.MaxResponseSize = DefaultMaxResponseSize
	}
	if c.ProxySettings.CacheMaxEntries == 0 {
		c.ProxySettings.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if c.ProxySettings.CacheTTLSeconds == 0 {
		c.ProxySettings.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if c.ProxySettings.CacheMaxBytes == 0 {
		c.ProxySettings.CacheMaxBytes = DefaultCacheMaxBytes
	}
	if c.ProxySettings.CacheMaxAgents == 0 {
		c.ProxySettings.CacheMaxAgents = DefaultCacheMaxAgents
	}
	if c.ProxySettings.RequestTimeoutSeconds == 0 {
		c.ProxySettings.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}

	for name, spec := range c.MCPServers {
		if spec.StartupTimeoutMs == 0 {
			spec.StartupTimeoutMs = DefaultStartupTimeoutMs
			c.MCPServers[name] = spec
		}
	}
}
