package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	FlowPath        string
	NATSURL         string
	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	DebugAddr       string
	Tracing         bool
	Validate        bool
	ShowVersion     bool
	ShutdownTimeout time.Duration
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.FlowPath, "flow",
		getEnv("NODEFLOW_FLOW", "flow.yaml"),
		"Path to the flow file, .yaml or .json (env: NODEFLOW_FLOW)")
	fs.StringVar(&cfg.NATSURL, "nats",
		getEnv("NODEFLOW_NATS_URL", ""),
		"Default NATS url for bridge nodes without their own (env: NODEFLOW_NATS_URL)")
	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("NODEFLOW_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: NODEFLOW_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("NODEFLOW_LOG_FORMAT", "json"),
		"Log format: json, text (env: NODEFLOW_LOG_FORMAT)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr",
		getEnv("NODEFLOW_METRICS_ADDR", ""),
		"Serve Prometheus /metrics on this address, empty to disable (env: NODEFLOW_METRICS_ADDR)")
	fs.StringVar(&cfg.DebugAddr, "debug-addr",
		getEnv("NODEFLOW_DEBUG_ADDR", ""),
		"Serve the debug websocket on this address, empty to disable (env: NODEFLOW_DEBUG_ADDR)")
	fs.BoolVar(&cfg.Tracing, "tracing",
		getEnvBool("NODEFLOW_TRACING", false),
		"Record an OpenTelemetry span per delivery (env: NODEFLOW_TRACING)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("NODEFLOW_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: NODEFLOW_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate the flow file and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "%s runs a message flow defined in a flow file.\n\nUsage: %s [options]\n\nOptions:\n", appName, appName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion {
		return nil
	}
	if _, err := os.Stat(cfg.FlowPath); err != nil {
		return fmt.Errorf("flow file not found: %s", cfg.FlowPath)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
