// Command nodeflow runs a message flow described by a flow file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/bridge/natsbridge"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/config"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/flow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/nodes"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

const (
	appName = "nodeflow"

	// Version is reported by -version and attached to every log line.
	Version = "0.1.0"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cfg); err != nil {
		return err
	}

	logger := setupLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	file, err := config.LoadFlowFile(cfg.FlowPath)
	if err != nil {
		return fmt.Errorf("load flow: %w", err)
	}

	if cfg.Validate {
		// Build without dialing anything so bridge nodes are checked too.
		deps := flow.Deps{Logger: logger}
		if cfg.NATSURL != "" {
			deps.NATS = natsbridge.NewDialer(cfg.NATSURL)
		}
		if _, err := flow.Build(file, flow.DefaultCatalog(), deps); err != nil {
			return fmt.Errorf("invalid flow: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "flow %q is valid (%d nodes, %d wires)\n", file.Name, len(file.Nodes), len(file.Wires))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runFlow(ctx, cfg, file, logger)
}

func runFlow(ctx context.Context, cfg *CLIConfig, file *config.FlowFile, logger *slog.Logger) error {
	deps := flow.Deps{Logger: logger}
	var servers []*http.Server

	if cfg.NATSURL != "" {
		deps.NATS = natsbridge.NewDialer(cfg.NATSURL,
			natsbridge.WithClientName(appName),
			natsbridge.WithDialLogger(logger))
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewPrometheusMetrics(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		deps.Metrics = metrics

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}

	if cfg.DebugAddr != "" {
		hub := nodes.NewDebugHub(logger)
		defer hub.Close()
		deps.DebugHub = hub

		mux := http.NewServeMux()
		mux.Handle("/debug/ws", hub)
		servers = append(servers, &http.Server{Addr: cfg.DebugAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}

	if cfg.Tracing {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
		deps.Spans = observability.NewSpanManager()
	}

	f, err := flow.Build(file, flow.DefaultCatalog(), deps)
	if err != nil {
		return fmt.Errorf("build flow: %w", err)
	}

	serveErr := make(chan error, len(servers))
	for _, srv := range servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			shutdownServers(servers, cfg.ShutdownTimeout, logger)
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		logger.Info("http server listening", "addr", ln.Addr().String())
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
		}()
	}
	defer shutdownServers(servers, cfg.ShutdownTimeout, logger)

	if err := f.Start(ctx); err != nil {
		return fmt.Errorf("start flow: %w", err)
	}
	logger.Info("flow started", "flow", f.Name(), "nodes", len(f.Nodes()))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-serveErr:
		logger.Error("http server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := f.Stop(shutdownCtx); err != nil {
		logger.Warn("flow stopped with errors", "error", err)
	}
	logger.Info("flow stopped", "flow", f.Name())
	return runErr
}

func shutdownServers(servers []*http.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("http server shutdown failed", "addr", srv.Addr, "error", err)
		}
	}
}
