package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsRecorder with Prometheus collectors.
type PrometheusMetrics struct {
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	drops      *prometheus.CounterVec
	faults     *prometheus.CounterVec
	captures   *prometheus.CounterVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the nodeflow collectors and registers them on reg.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Subsystem: "node",
			Name:      "deliveries_total",
			Help:      "Number of messages processed by nodes",
		}, []string{"node_id", "success"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodeflow",
			Subsystem: "node",
			Name:      "latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"node_id"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Subsystem: "node",
			Name:      "drops_total",
			Help:      "Number of messages dropped before processing",
		}, []string{"node_id", "reason"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Subsystem: "node",
			Name:      "faults_total",
			Help:      "Number of node faults",
		}, []string{"node_id"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Subsystem: "catch",
			Name:      "captures_total",
			Help:      "Number of faults re-emitted by catch nodes",
		}, []string{"catch_id", "source_node"}),
	}

	for _, c := range []prometheus.Collector{m.deliveries, m.latency, m.drops, m.faults, m.captures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordDelivery records a processed message.
func (m *PrometheusMetrics) RecordDelivery(_ context.Context, nodeID string, duration time.Duration, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	m.deliveries.WithLabelValues(nodeID, success).Inc()
	m.latency.WithLabelValues(nodeID).Observe(duration.Seconds())
}

// RecordDrop records a dropped message.
func (m *PrometheusMetrics) RecordDrop(_ context.Context, nodeID, reason string) {
	m.drops.WithLabelValues(nodeID, reason).Inc()
}

// RecordFault records a node fault.
func (m *PrometheusMetrics) RecordFault(_ context.Context, nodeID string) {
	m.faults.WithLabelValues(nodeID).Inc()
}

// RecordCapture records a captured fault.
func (m *PrometheusMetrics) RecordCapture(_ context.Context, catchID, sourceNodeID string) {
	m.captures.WithLabelValues(catchID, sourceNodeID).Inc()
}
