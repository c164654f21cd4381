// Package observability provides structured logging, metrics, and tracing
// for nodeflow message delivery.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// Drop reasons reported by the dispatcher, routing nodes and bridges.
const (
	DropNotRunning   = "not_running"
	DropDepthLimit   = "depth_limit"
	DropRoutingMiss  = "routing_miss"
	DropFaultedEmits = "faulted_emits"
	DropDecodeError  = "decode_error"
)

// EnrichLogger adds node context to a logger.
// Returns a new logger with node_id and pipeline_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "switch-1", "telemetry")
//	enriched.Info("routing") // includes node_id, pipeline_id
func EnrichLogger(logger *slog.Logger, nodeID, pipelineID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("node_id", nodeID),
		slog.String("pipeline_id", pipelineID),
	)
}

// LogNodeStatus logs a lifecycle transition.
func LogNodeStatus(logger *slog.Logger, nodeID, from, to string) {
	if logger == nil {
		return
	}
	logger.Info("node status changed",
		slog.String("node_id", nodeID),
		slog.String("from", from),
		slog.String("status", to),
	)
}

// LogDrop logs a message that was not delivered.
func LogDrop(logger *slog.Logger, nodeID, messageID, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("message dropped",
		slog.String("node_id", nodeID),
		slog.String("message_id", messageID),
		slog.String("reason", reason),
	)
}

// LogDelivery logs a completed delivery.
func LogDelivery(logger *slog.Logger, nodeID, messageID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("message delivered",
		slog.String("node_id", nodeID),
		slog.String("message_id", messageID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFault logs a node fault.
func LogFault(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node fault",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogDepthExceeded logs a delivery refused by the depth guard.
func LogDepthExceeded(logger *slog.Logger, nodeID, messageID string, depth, max int) {
	if logger == nil {
		return
	}
	logger.Warn("delivery depth exceeded",
		slog.String("node_id", nodeID),
		slog.String("message_id", messageID),
		slog.Int("depth", depth),
		slog.Int("max_depth", max),
	)
}

// LogCapture logs a fault captured by a catch node.
func LogCapture(logger *slog.Logger, catchID, sourceNodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("caught node error",
		slog.String("node_id", catchID),
		slog.String("source_node", sourceNodeID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
