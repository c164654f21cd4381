package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
)

// OutConfig configures an OutNode.
type OutConfig struct {
	// Subject messages are published to.
	Subject string

	// SubjectOverride publishes to the message's "subject" metadata value
	// when it is a non-empty string, falling back to Subject.
	SubjectOverride bool
}

// OutNode is a sink that publishes every message it receives.
//
// Publish failures are returned from Process and so go through the node's
// fault path; they are not retried.
type OutNode struct {
	*nodeflow.Node

	dial Dialer
	cfg  OutConfig

	mu   sync.RWMutex
	conn Conn
}

// NewOutNode creates an outbound bridge. It does not connect.
func NewOutNode(id string, dial Dialer, cfg OutConfig, opts ...nodeflow.Option) (*OutNode, error) {
	if dial == nil {
		return nil, fmt.Errorf("nats out %s: %w: dialer is required", id, nodeflow.ErrInvalidConfig)
	}
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats out %s: %w: subject is required", id, nodeflow.ErrInvalidConfig)
	}

	o := &OutNode{dial: dial, cfg: cfg}
	base, err := nodeflow.NewNode(id, nodeflow.Sink, o, opts...)
	if err != nil {
		return nil, err
	}
	o.Node = base
	return o, nil
}

// Config returns the node's configuration.
func (o *OutNode) Config() OutConfig { return o.cfg }

// Connect dials the server. It is a no-op when already connected.
func (o *OutNode) Connect(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		return nil
	}
	conn, err := o.dial(ctx)
	if err != nil {
		return fmt.Errorf("nats out %s: %w", o.ID(), err)
	}
	o.conn = conn
	o.Logger().Info("nats bridge connected",
		slog.String("node_id", o.ID()),
		slog.String("subject", o.cfg.Subject),
	)
	return nil
}

// Close flushes pending publishes and closes the connection.
func (o *OutNode) Close() error {
	o.mu.Lock()
	conn := o.conn
	o.conn = nil
	o.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Drain()
}

// Connected reports whether Connect has succeeded and Close has not been called.
func (o *OutNode) Connected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.conn != nil
}

// Process implements nodeflow.Processor.
func (o *OutNode) Process(_ context.Context, msg nodeflow.Message) error {
	o.mu.RLock()
	conn := o.conn
	o.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	subject := o.subjectFor(msg)
	data, err := Encode(msg.Payload())
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID(), err)
	}
	if err := conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

func (o *OutNode) subjectFor(msg nodeflow.Message) string {
	if !o.cfg.SubjectOverride {
		return o.cfg.Subject
	}
	if v, ok := msg.Get(MetaSubject); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return o.cfg.Subject
}

// Encode converts a payload to wire bytes. Strings and byte slices are sent
// raw, errors as their text, and anything else as JSON.
func Encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case error:
		return []byte(p.Error()), nil
	default:
		return json.Marshal(p)
	}
}
