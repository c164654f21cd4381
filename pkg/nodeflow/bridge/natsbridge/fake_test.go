package natsbridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
)

func quiet(opts ...nodeflow.Option) []nodeflow.Option {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return append([]nodeflow.Option{nodeflow.WithLogger(logger)}, opts...)
}

type published struct {
	subject string
	data    string
}

// fakeConn is an in-memory Conn.
type fakeConn struct {
	mu         sync.Mutex
	handlers   map[string]nats.MsgHandler
	queues     map[string]string
	published  []published
	publishErr error
	subErr     map[string]error
	drained    bool
	closed     bool
	unsubbed   int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		handlers: make(map[string]nats.MsgHandler),
		queues:   make(map[string]string),
		subErr:   make(map[string]error),
	}
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{subject: subject, data: string(data)})
	return nil
}

func (c *fakeConn) Subscribe(subject string, cb nats.MsgHandler) (Subscription, error) {
	return c.QueueSubscribe(subject, "", cb)
}

func (c *fakeConn) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.subErr[subject]; err != nil {
		return nil, err
	}
	c.handlers[subject] = cb
	c.queues[subject] = queue
	return &fakeSub{conn: c}, nil
}

func (c *fakeConn) Drain() error {
	c.mu.Lock()
	c.drained = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// deliver simulates a message arriving on subject.
func (c *fakeConn) deliver(t *testing.T, m *nats.Msg) {
	t.Helper()
	c.mu.Lock()
	h := c.handlers[m.Subject]
	c.mu.Unlock()
	require.NotNil(t, h, "no subscription for %s", m.Subject)
	h(m)
}

func (c *fakeConn) sent() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

type fakeSub struct {
	conn *fakeConn
}

func (s *fakeSub) Unsubscribe() error {
	s.conn.mu.Lock()
	s.conn.unsubbed++
	s.conn.mu.Unlock()
	return nil
}

func dialerFor(conn Conn) (Dialer, *int) {
	calls := 0
	return func(context.Context) (Conn, error) {
		calls++
		return conn, nil
	}, &calls
}

func failingDialer(err error) Dialer {
	return func(context.Context) (Conn, error) {
		return nil, err
	}
}

var errBoom = errors.New("boom")

// sink is a running sink that keeps what it receives.
type sink struct {
	*nodeflow.Node

	mu   sync.Mutex
	msgs []nodeflow.Message
}

func newSink(t *testing.T, id string) *sink {
	t.Helper()
	s := &sink{}
	base, err := nodeflow.NewNode(id, nodeflow.Sink, s, quiet()...)
	require.NoError(t, err)
	s.Node = base
	s.Start()
	return s
}

func (s *sink) Process(_ context.Context, msg nodeflow.Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	return nil
}

func (s *sink) messages() []nodeflow.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]nodeflow.Message(nil), s.msgs...)
}
