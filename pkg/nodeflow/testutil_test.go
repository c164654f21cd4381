package nodeflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// quietLogger returns a logger that discards all output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a Processor that keeps every message it receives.
type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) Process(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recorder) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// trail records the order in which nodes processed messages.
type trail struct {
	mu    sync.Mutex
	steps []string
}

func (t *trail) add(step string) {
	t.mu.Lock()
	t.steps = append(t.steps, step)
	t.mu.Unlock()
}

func (t *trail) get() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.steps...)
}

// newSink creates a running sink that records what it receives.
func newSink(t *testing.T, id string, opts ...Option) (*Node, *recorder) {
	t.Helper()
	rec := &recorder{}
	n, err := NewNode(id, Sink, rec, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	n.Start()
	return n, rec
}

// newSource creates a running source.
func newSource(t *testing.T, id string, opts ...Option) *Node {
	t.Helper()
	n, err := NewNode(id, Source, nil, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	n.Start()
	return n
}

// newRelay creates a running transform that forwards every message unchanged.
// If tr is non-nil the node's id is appended to it on each delivery.
func newRelay(t *testing.T, id string, tr *trail, opts ...Option) *Node {
	t.Helper()
	var n *Node
	n, err := NewNode(id, Transform, ProcessorFunc(func(ctx context.Context, msg Message) error {
		if tr != nil {
			tr.add(id)
		}
		return n.Emit(ctx, msg)
	}), append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	n.Start()
	return n
}

// newFailing creates a running transform that emits and then fails with err.
func newFailing(t *testing.T, id string, err error, opts ...Option) *Node {
	t.Helper()
	var n *Node
	n, nerr := NewNode(id, Transform, ProcessorFunc(func(ctx context.Context, msg Message) error {
		if emitErr := n.Emit(ctx, msg); emitErr != nil {
			return emitErr
		}
		return err
	}), append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, nerr)
	n.Start()
	return n
}

func mustWire(t *testing.T, from, to Element) *Pipe {
	t.Helper()
	p, err := Wire(from, to)
	require.NoError(t, err)
	return p
}

// metricsSpy is a MetricsRecorder that counts calls.
type metricsSpy struct {
	mu         sync.Mutex
	deliveries map[string]int
	failures   map[string]int
	drops      map[string][]string
	faults     map[string]int
}

func newMetricsSpy() *metricsSpy {
	return &metricsSpy{
		deliveries: map[string]int{},
		failures:   map[string]int{},
		drops:      map[string][]string{},
		faults:     map[string]int{},
	}
}

func (m *metricsSpy) RecordDelivery(_ context.Context, nodeID string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[nodeID]++
	if err != nil {
		m.failures[nodeID]++
	}
}

func (m *metricsSpy) RecordDrop(_ context.Context, nodeID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[nodeID] = append(m.drops[nodeID], reason)
}

func (m *metricsSpy) RecordFault(_ context.Context, nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[nodeID]++
}

func (m *metricsSpy) RecordCapture(context.Context, string, string) {}

func (m *metricsSpy) dropsFor(nodeID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.drops[nodeID]...)
}

// spanPathKey carries the chain of node ids whose delivery spans enclose ctx.
type spanPathKey struct{}

// spanSpy is a SpanManager that records the nesting of delivery spans.
type spanSpy struct {
	mu    sync.Mutex
	paths []string
}

func (s *spanSpy) StartDeliverySpan(ctx context.Context, nodeID, _ string) (context.Context, trace.Span) {
	parent, _ := ctx.Value(spanPathKey{}).(string)
	path := parent + "/" + nodeID
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	return context.WithValue(ctx, spanPathKey{}, path), noop.Span{}
}

func (s *spanSpy) EndSpanWithError(trace.Span, error) {}

func (s *spanSpy) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}

func (s *spanSpy) get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}
