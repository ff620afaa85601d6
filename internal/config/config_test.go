package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"mcpServers": {
			"fs": {
				"command": "mcp-fs",
				"args": ["--root", "/data"],
				"env": {"FS_MODE": "ro"},
				"startupTimeoutMs": 5000
			},
			"github": {"command": "mcp-github"}
		},
		"proxySettings": {
			"maxResponseSize": 4000,
			"cacheMaxEntries": 10,
			"cacheTTLSeconds": 60,
			"enableAutoTruncation": false
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	fs, ok := cfg.MCPServers["fs"]
	if !ok {
		t.Fatal("fs upstream missing")
	}
	if fs.Command != "mcp-fs" || len(fs.Args) != 2 || fs.Env["FS_MODE"] != "ro" {
		t.Errorf("fs spec = %+v", fs)
	}
	if fs.StartupTimeoutMs != 5000 {
		t.Errorf("fs startupTimeoutMs = %d, want 5000", fs.StartupTimeoutMs)
	}
	if gh := cfg.MCPServers["github"]; gh.StartupTimeoutMs != DefaultStartupTimeoutMs {
		t.Errorf("github startupTimeoutMs = %d, want default", gh.StartupTimeoutMs)
	}

	s := cfg.ProxySettings
	if s.MaxResponseSize != 4000 || s.CacheMaxEntries != 10 || s.CacheTTLSeconds != 60 {
		t.Errorf("settings = %+v", s)
	}
	if s.AutoTruncate() {
		t.Error("AutoTruncate = true, want explicit false honored")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"mcpServers": {"fs": {"command": "mcp-fs"}}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s := cfg.ProxySettings
	if s.MaxResponseSize != DefaultMaxResponseSize {
		t.Errorf("maxResponseSize = %d, want %d", s.MaxResponseSize, DefaultMaxResponseSize)
	}
	if s.CacheMaxEntries != DefaultCacheMaxEntries {
		t.Errorf("cacheMaxEntries = %d, want %d", s.CacheMaxEntries, DefaultCacheMaxEntries)
	}
	if s.CacheTTLSeconds != DefaultCacheTTLSeconds {
		t.Errorf("cacheTTLSeconds = %d, want %d", s.CacheTTLSeconds, DefaultCacheTTLSeconds)
	}
	if s.CacheMaxBytes != DefaultCacheMaxBytes {
		t.Errorf("cacheMaxBytes = %d, want %d", s.CacheMaxBytes, DefaultCacheMaxBytes)
	}
	if s.RequestTimeoutSeconds != DefaultRequestTimeoutSeconds {
		t.Errorf("requestTimeoutSeconds = %d", s.RequestTimeoutSeconds)
	}
	if !s.AutoTruncate() {
		t.Error("AutoTruncate default = false, want true")
	}
}

func TestLoadEmptyServerList(t *testing.T) {
	path := writeConfig(t, `{"mcpServers": {}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.MCPServers) != 0 {
		t.Errorf("servers = %v, want none", cfg.MCPServers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"mcpServers": `)
	if _, err := Load(path); err == nil {
		t.Error("Load of malformed JSON succeeded")
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/explicit.json"); got != "/explicit.json" {
		t.Errorf("flag path = %q", got)
	}

	t.Setenv(EnvConfigFile, "/from-env.json")
	if got := ResolvePath(""); got != "/from-env.json" {
		t.Errorf("env path = %q", got)
	}
	if got := ResolvePath("/flag.json"); got != "/flag.json" {
		t.Errorf("flag should beat env, got %q", got)
	}

	t.Setenv(EnvConfigFile, "")
	if got := ResolvePath(""); got != defaultFileName {
		t.Errorf("default path = %q, want %q", got, defaultFileName)
	}
}
