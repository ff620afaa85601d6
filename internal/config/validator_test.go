package config

import (
	"strings"
	"testing"
)

func validConfig() *ProxyConfig {
	cfg := &ProxyConfig{
		MCPServers: map[string]UpstreamSpec{
			"fs": {Command: "mcp-fs"},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateNamePattern(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"fs", true},
		{"my_server-2", true},
		{strings.Repeat("a", 100), true},
		{strings.Repeat("a", 101), false},
		{"bad name", false},
		{"bad.name", false},
		{"", false},
	}

	for _, tt := range tests {
		cfg := validConfig()
		cfg.MCPServers[tt.name] = UpstreamSpec{Command: "x"}
		err := cfg.Validate()
		if tt.ok && err != nil {
			t.Errorf("name %q rejected: %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("name %q accepted", tt.name)
		}
	}
}

func TestValidateReservedProxyName(t *testing.T) {
	cfg := validConfig()
	cfg.MCPServers["proxy"] = UpstreamSpec{Command: "x"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Errorf("err = %v, want reserved-name rejection", err)
	}
}

func TestValidateEmptyCommand(t *testing.T) {
	cfg := validConfig()
	cfg.MCPServers["bad"] = UpstreamSpec{Command: "  "}
	if err := cfg.Validate(); err == nil {
		t.Error("empty command accepted")
	}
}

func TestValidateNegativeSettings(t *testing.T) {
	cfg := validConfig()
	cfg.ProxySettings.MaxResponseSize = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative maxResponseSize accepted")
	}

	cfg = validConfig()
	cfg.ProxySettings.CacheTTLSeconds = -5
	if err := cfg.Validate(); err == nil {
		t.Error("negative cacheTTLSeconds accepted")
	}
}

func TestValidateMetricsAddr(t *testing.T) {
	cfg := validConfig()
	cfg.ProxySettings.MetricsAddr = "127.0.0.1:9090"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid metricsAddr rejected: %v", err)
	}

	cfg = validConfig()
	cfg.ProxySettings.MetricsAddr = "not a hostport"
	if err := cfg.Validate(); err == nil {
		t.Error("bogus metricsAddr accepted")
	}
}
