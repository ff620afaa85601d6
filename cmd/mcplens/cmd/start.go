package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mcplens/mcplens/internal/adapter/inbound/stdio"
	mcpclient "github.com/mcplens/mcplens/internal/adapter/outbound/mcp"
	"github.com/mcplens/mcplens/internal/cache"
	"github.com/mcplens/mcplens/internal/config"
	"github.com/mcplens/mcplens/internal/domain/proxy"
	"github.com/mcplens/mcplens/internal/port/outbound"
	"github.com/mcplens/mcplens/internal/service"
	"github.com/mcplens/mcplens/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy on stdio",
	Long: `Start the mcplens proxy.

Spawns every server from the mcpServers config section, aggregates their
tool catalogs under qualified names, and serves MCP on stdin/stdout until
the client disconnects or a shutdown signal arrives. Running the bare
"mcplens" command does the same thing.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(cfgFile)
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr; stdout is the MCP stream.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("LOG_LEVEL")),
	}))
	logger.Info("config loaded", "file", path, "upstreams", len(cfg.MCPServers))

	// stop() restores default signal handling so a second Ctrl+C exits hard.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	return run(ctx, cfg, logger)
}

// run wires the components and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.ProxyConfig, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	if addr := cfg.ProxySettings.MetricsAddr; addr != "" {
		go telemetry.Serve(ctx, addr, registry, logger)
	}

	store := cache.New(cache.Config{
		MaxEntriesPerAgent: cfg.ProxySettings.CacheMaxEntries,
		MaxBytesPerAgent:   cfg.ProxySettings.CacheMaxBytes,
		MaxAgents:          cfg.ProxySettings.CacheMaxAgents,
		TTL:                time.Duration(cfg.ProxySettings.CacheTTLSeconds) * time.Second,
	}, logger)

	interceptor := proxy.NewInterceptor(
		cfg.ProxySettings.MaxResponseSize,
		cfg.ProxySettings.AutoTruncate(),
		store,
		logger,
	)

	resolver := proxy.NewNameResolver(nil)
	pool := service.NewSessionPool(stdioConnFactory, resolver, metrics, logger)
	defer pool.Shutdown(context.Background())

	ready := pool.StartAll(ctx, cfg.MCPServers)
	logger.Info("upstream startup finished",
		"configured", len(cfg.MCPServers),
		"ready", ready)
	if ready == 0 && len(cfg.MCPServers) > 0 {
		return errNoUpstreams
	}

	dispatcher := service.NewDispatcher(pool, resolver, interceptor, metrics,
		time.Duration(cfg.ProxySettings.RequestTimeoutSeconds)*time.Second, logger)
	tools := service.NewProxyTools(store, dispatcher, metrics, logger)
	transport := stdio.NewTransport(pool, dispatcher, tools, proxy.NewCounterIdentifier(), logger)

	logger.Info("serving on stdio", "tools", len(pool.Catalog()))
	if err := transport.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	logger.Info("mcplens stopped")
	return nil
}

// stdioConnFactory builds the child-process connection for one upstream.
func stdioConnFactory(name string, spec config.UpstreamSpec) outbound.UpstreamConn {
	return mcpclient.NewStdioConn(spec.Command, spec.Args, spec.Env)
}

// parseLogLevel converts a LOG_LEVEL value to slog.Level. Unrecognized
// values fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
