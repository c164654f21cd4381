package nodes

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quiet(opts ...nodeflow.Option) []nodeflow.Option {
	return append([]nodeflow.Option{nodeflow.WithLogger(quietLogger())}, opts...)
}

// capture is a running sink that keeps what it receives.
type capture struct {
	*nodeflow.Node

	mu   sync.Mutex
	msgs []nodeflow.Message
}

func newCapture(t *testing.T, id string) *capture {
	t.Helper()
	c := &capture{}
	base, err := nodeflow.NewNode(id, nodeflow.Sink, c, quiet()...)
	require.NoError(t, err)
	c.Node = base
	c.Start()
	return c
}

func (c *capture) Process(_ context.Context, msg nodeflow.Message) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	return nil
}

func (c *capture) messages() []nodeflow.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]nodeflow.Message(nil), c.msgs...)
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// newInjector returns a running source used to feed a node under test.
func newInjector(t *testing.T) *nodeflow.Node {
	t.Helper()
	n, err := nodeflow.NewNode("inject", nodeflow.Source, nil, quiet()...)
	require.NoError(t, err)
	n.Start()
	return n
}

func wire(t *testing.T, from, to nodeflow.Element) *nodeflow.Pipe {
	t.Helper()
	p, err := nodeflow.Wire(from, to)
	require.NoError(t, err)
	return p
}

// metricsSpy records drops and captures.
type metricsSpy struct {
	mu       sync.Mutex
	drops    map[string]int
	captures []string
}

func newMetricsSpy() *metricsSpy {
	return &metricsSpy{drops: make(map[string]int)}
}

func (s *metricsSpy) RecordDelivery(context.Context, string, time.Duration, error) {}

func (s *metricsSpy) RecordDrop(_ context.Context, _ string, reason string) {
	s.mu.Lock()
	s.drops[reason]++
	s.mu.Unlock()
}

func (s *metricsSpy) RecordFault(context.Context, string) {}

func (s *metricsSpy) RecordCapture(_ context.Context, catchID, sourceNodeID string) {
	s.mu.Lock()
	s.captures = append(s.captures, catchID+"<-"+sourceNodeID)
	s.mu.Unlock()
}

func (s *metricsSpy) dropCount(reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops[reason]
}

func (s *metricsSpy) captured() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.captures...)
}
