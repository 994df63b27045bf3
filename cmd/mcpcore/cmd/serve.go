package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vecmcp/mcpserver/internal/adapter/inbound/httpmetrics"
	"github.com/vecmcp/mcpserver/internal/adapter/inbound/sse"
	"github.com/vecmcp/mcpserver/internal/adapter/inbound/stdio"
	"github.com/vecmcp/mcpserver/internal/adapter/inbound/streamable"
	"github.com/vecmcp/mcpserver/internal/builtin"
	"github.com/vecmcp/mcpserver/internal/config"
	"github.com/vecmcp/mcpserver/internal/domain/dispatch"
	"github.com/vecmcp/mcpserver/internal/domain/outbound"
	"github.com/vecmcp/mcpserver/internal/domain/session"
	"github.com/vecmcp/mcpserver/internal/telemetry"
)

const gaugeUpdateInterval = 5 * time.Second

var metricsExporterFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start mcpcore with whichever transports are enabled in configuration.

Examples:
  # Start with config file settings
  mcpcore serve

  # Start with a specific config file
  mcpcore --config /path/to/mcpcore.yaml serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsExporterFlag, "metrics-exporter", "", "additional OpenTelemetry metrics exporter (\"\" or \"stdout\"), overrides metrics.exporter")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if metricsExporterFlag != "" {
		cfg.Metrics.Exporter = metricsExporterFlag
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var shutdowns []telemetry.Shutdown
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, sd := range shutdowns {
			if err := sd(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}
	}()

	if cfg.Tracing.Enabled {
		sd, err := telemetry.SetupTracing(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		shutdowns = append(shutdowns, sd)
		logger.Info("tracing enabled", "exporter", "stdouttrace")
	}
	if cfg.Metrics.Exporter == "stdout" {
		sd, err := telemetry.SetupMetrics(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to set up metrics exporter: %w", err)
		}
		shutdowns = append(shutdowns, sd)
		logger.Info("otel metrics exporter enabled", "exporter", "stdout")
	}

	sessionTimeout, err := time.ParseDuration(cfg.Session.Timeout)
	if err != nil {
		sessionTimeout = 30 * time.Minute
		logger.Warn("invalid session.timeout, using default", "value", cfg.Session.Timeout, "default", sessionTimeout)
	}
	requestTimeout, err := time.ParseDuration(cfg.Server.RequestTimeout)
	if err != nil {
		requestTimeout = 30 * time.Second
		logger.Warn("invalid server.request_timeout, using default", "value", cfg.Server.RequestTimeout, "default", requestTimeout)
	}

	sessions := session.NewManager(sessionTimeout, logger)
	if !cfg.Transports.Stdio {
		sessions.StartSweep(ctx, time.Minute)
	}
	defer sessions.Stop()

	outboundReg := outbound.New(logger, requestTimeout)
	defer outboundReg.CancelAll()

	serverInfo := &mcp.Implementation{Name: "mcpcore", Version: Version}
	registry := builtin.New(serverInfo)
	handler := builtin.Handler{}
	dispatcher := dispatch.New(registry, handler, outboundReg, serverInfo, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httpmetrics.NewMetrics(reg)
	health := httpmetrics.NewHealthChecker(sessions, outboundReg, Version)
	go updateGauges(ctx, metrics, sessions, outboundReg)

	switch {
	case cfg.Transports.Stdio:
		logger.Info("transport mode: stdio")
		transport := stdio.New(os.Stdin, os.Stdout, dispatcher, sessions, logger)
		return transport.Run(ctx)

	default:
		mux := http.NewServeMux()
		if cfg.Transports.Streamable {
			streamOpts := []streamable.Option{
				streamable.WithEventRetention(cfg.Session.EventRetention),
				streamable.WithMetrics(metrics),
			}
			if !cfg.Server.AllowAllOrigins() {
				streamOpts = append(streamOpts, streamable.WithAllowedOrigins(cfg.Server.AllowedOrigins))
			}
			streamTransport := streamable.New(dispatcher, sessions, logger, streamOpts...)
			mux.Handle(cfg.Server.PathPrefix+"/mcp", streamTransport.Handler())
			logger.Info("streamable-HTTP transport mounted", "path", cfg.Server.PathPrefix+"/mcp")
		}
		if cfg.Transports.SSE {
			sseTransport := sse.New(dispatcher, sessions, logger, cfg.Server.PathPrefix)
			sseTransport.Register(mux)
			logger.Info("legacy SSE transport mounted", "prefix", cfg.Server.PathPrefix)
		}
		if cfg.Metrics.Enabled {
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		}
		mux.Handle("/health", health.Handler())

		httpServer := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: httpmetrics.Middleware(metrics)(mux),
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("transport mode: HTTP", "addr", cfg.Server.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	}
}

// updateGauges keeps the active-sessions and outbound-pending gauges
// current; both underlying counts are cheap reads, so a short poll
// interval is fine.
func updateGauges(ctx context.Context, metrics *httpmetrics.Metrics, sessions *session.Manager, outboundReg *outbound.Registry) {
	ticker := time.NewTicker(gaugeUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ActiveSessions.Set(float64(sessions.Count()))
			metrics.OutboundPending.Set(float64(outboundReg.Pending()))
		}
	}
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
