package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records nodeflow delivery metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusMetrics() for
// Prometheus, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDelivery records one message processed by a node.
	RecordDelivery(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordDrop records a message that was not delivered to a node.
	RecordDrop(ctx context.Context, nodeID, reason string)

	// RecordFault records a node entering the error state.
	RecordFault(ctx context.Context, nodeID string)

	// RecordCapture records a fault re-emitted by a catch node.
	RecordCapture(ctx context.Context, catchID, sourceNodeID string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	deliveries metric.Int64Counter
	latency    metric.Float64Histogram
	drops      metric.Int64Counter
	faults     metric.Int64Counter
	captures   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("nodeflow")

	deliveries, err := meter.Int64Counter("nodeflow.node.deliveries",
		metric.WithDescription("Number of messages processed by nodes"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("nodeflow.node.latency_ms",
		metric.WithDescription("Message processing latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("nodeflow.node.drops",
		metric.WithDescription("Number of messages dropped before processing"),
	)
	if err != nil {
		return nil, err
	}

	faults, err := meter.Int64Counter("nodeflow.node.faults",
		metric.WithDescription("Number of node faults"),
	)
	if err != nil {
		return nil, err
	}

	captures, err := meter.Int64Counter("nodeflow.catch.captures",
		metric.WithDescription("Number of faults re-emitted by catch nodes"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		deliveries: deliveries,
		latency:    latency,
		drops:      drops,
		faults:     faults,
		captures:   captures,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDelivery records a processed message.
func (m *otelMetrics) RecordDelivery(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Bool("success", err == nil),
	)
	m.deliveries.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordDrop records a dropped message.
func (m *otelMetrics) RecordDrop(ctx context.Context, nodeID, reason string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("reason", reason),
	))
}

// RecordFault records a node fault.
func (m *otelMetrics) RecordFault(ctx context.Context, nodeID string) {
	m.faults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", nodeID),
	))
}

// RecordCapture records a captured fault.
func (m *otelMetrics) RecordCapture(ctx context.Context, catchID, sourceNodeID string) {
	m.captures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("catch_id", catchID),
		attribute.String("source_node", sourceNodeID),
	))
}
