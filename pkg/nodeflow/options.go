package nodeflow

import (
	"log/slog"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// DefaultMaxDepth is the default limit on the number of hops a single
// injection may travel before deliveries are dropped.
const DefaultMaxDepth = 1000

// nodeConfig holds per-node configuration.
type nodeConfig struct {
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	pipelineID string
	reporter   FaultReporter
	maxDepth   int
}

// defaultNodeConfig returns the default node configuration.
func defaultNodeConfig() nodeConfig {
	return nodeConfig{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		maxDepth: DefaultMaxDepth,
	}
}

// Option configures a node.
type Option func(*nodeConfig)

// WithLogger sets the node's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *nodeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the recorder for delivery, drop and fault metrics.
// Default: observability.NoopMetrics{}.
//
// Example:
//
//	prom, _ := observability.NewPrometheusMetrics(reg)
//	node, _ := nodes.NewDebugNode("debug", nodes.DebugConfig{}, nodeflow.WithMetrics(prom))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *nodeConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry delivery spans using the global tracer provider.
func WithTracing() Option {
	return WithSpanManager(observability.NewSpanManager())
}

// WithSpanManager sets the span manager used for delivery spans.
// Default: observability.NoopSpanManager{}.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *nodeConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithPipeline sets the pipeline the node belongs to.
func WithPipeline(id string) Option {
	return func(c *nodeConfig) {
		c.pipelineID = id
	}
}

// WithFaultReporter sets where the node's faults are reported.
func WithFaultReporter(r FaultReporter) Option {
	return func(c *nodeConfig) {
		c.reporter = r
	}
}

// WithMaxDepth sets the maximum number of hops for injections that start at
// this node. Default: 1000.
//
// Cyclic graphs are legal; a message travelling around a cycle is dropped
// once its path exceeds this limit and the injector receives a *DepthError.
func WithMaxDepth(n int) Option {
	return func(c *nodeConfig) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}
