package natsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	nferrors "github.com/randalmurphal/nodeflow/pkg/nodeflow/errors"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// Metadata keys set on messages received by an InNode.
const (
	MetaSubject = "subject"
	MetaReply   = "reply"
	MetaHeaders = "headers"
)

// ErrNotConnected is returned when a bridge node is used before Connect.
var ErrNotConnected = errors.New("bridge not connected")

// InConfig configures an InNode.
type InConfig struct {
	// Subjects to subscribe to. Wildcards are allowed.
	Subjects []string

	// Queue, when set, joins every subscription to this queue group.
	Queue string

	// JSONPayload decodes message data as JSON instead of emitting it as a string.
	JSONPayload bool
}

// InNode is a source that emits every message received on its subjects.
//
// Each received message starts its own injection. Messages that arrive
// while the node is not running are dropped, unlike a plain Source whose
// Emit is not gated on status, since subscriptions open at Connect before
// the node is started.
type InNode struct {
	*nodeflow.Node

	dial Dialer
	cfg  InConfig

	mu   sync.Mutex
	conn Conn
	subs []Subscription
}

// NewInNode creates an inbound bridge. It does not connect.
func NewInNode(id string, dial Dialer, cfg InConfig, opts ...nodeflow.Option) (*InNode, error) {
	if dial == nil {
		return nil, fmt.Errorf("nats in %s: %w: dialer is required", id, nodeflow.ErrInvalidConfig)
	}
	if len(cfg.Subjects) == 0 {
		return nil, fmt.Errorf("nats in %s: %w: at least one subject is required", id, nodeflow.ErrInvalidConfig)
	}
	if slices.Contains(cfg.Subjects, "") {
		return nil, fmt.Errorf("nats in %s: %w: empty subject", id, nodeflow.ErrInvalidConfig)
	}
	cfg.Subjects = slices.Clone(cfg.Subjects)

	base, err := nodeflow.NewNode(id, nodeflow.Source, nil, opts...)
	if err != nil {
		return nil, err
	}
	return &InNode{Node: base, dial: dial, cfg: cfg}, nil
}

// Config returns the node's configuration.
func (in *InNode) Config() InConfig {
	cfg := in.cfg
	cfg.Subjects = slices.Clone(cfg.Subjects)
	return cfg
}

// Connect dials and subscribes to every subject. It is a no-op when
// already connected.
func (in *InNode) Connect(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.conn != nil {
		return nil
	}

	conn, err := in.dial(ctx)
	if err != nil {
		return fmt.Errorf("nats in %s: %w", in.ID(), err)
	}

	subs := make([]Subscription, 0, len(in.cfg.Subjects))
	for _, subject := range in.cfg.Subjects {
		var sub Subscription
		if in.cfg.Queue != "" {
			sub, err = conn.QueueSubscribe(subject, in.cfg.Queue, in.handle)
		} else {
			sub, err = conn.Subscribe(subject, in.handle)
		}
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			conn.Close()
			return fmt.Errorf("nats in %s: subscribe %s: %w", in.ID(), subject, err)
		}
		subs = append(subs, sub)
	}

	in.conn = conn
	in.subs = subs
	in.Logger().Info("nats bridge subscribed",
		slog.String("node_id", in.ID()),
		slog.Any("subjects", in.cfg.Subjects),
		slog.String("queue", in.cfg.Queue),
	)
	return nil
}

// Close drains the subscriptions and the connection.
func (in *InNode) Close() error {
	in.mu.Lock()
	conn := in.conn
	in.conn = nil
	in.subs = nil
	in.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Drain()
}

// Connected reports whether Connect has succeeded and Close has not been called.
func (in *InNode) Connected() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.conn != nil
}

func (in *InNode) handle(m *nats.Msg) {
	ctx := context.Background()

	if in.Status() != nodeflow.StatusRunning {
		observability.LogDrop(in.Logger(), in.ID(), "", observability.DropNotRunning)
		in.Metrics().RecordDrop(ctx, in.ID(), observability.DropNotRunning)
		return
	}

	msg, err := in.toMessage(m)
	if err != nil {
		in.Logger().Warn("nats message dropped",
			slog.String("node_id", in.ID()),
			slog.String("subject", m.Subject),
			slog.String("error", err.Error()),
		)
		in.Metrics().RecordDrop(ctx, in.ID(), observability.DropDecodeError)
		return
	}

	if err := in.Emit(ctx, msg); err != nil {
		in.Logger().Warn("nats message not fully delivered",
			slog.String("node_id", in.ID()),
			slog.String("message_id", msg.ID()),
			slog.String("error", err.Error()),
		)
	}
}

func (in *InNode) toMessage(m *nats.Msg) (nodeflow.Message, error) {
	var payload any = string(m.Data)
	if in.cfg.JSONPayload {
		var decoded any
		if err := json.Unmarshal(m.Data, &decoded); err != nil {
			return nodeflow.Message{}, &nferrors.DecodeError{Subject: m.Subject, Err: err}
		}
		payload = decoded
	}

	meta := map[string]any{MetaSubject: m.Subject}
	if m.Reply != "" {
		meta[MetaReply] = m.Reply
	}
	if len(m.Header) > 0 {
		headers := make(map[string][]string, len(m.Header))
		for k, v := range m.Header {
			headers[k] = slices.Clone(v)
		}
		meta[MetaHeaders] = headers
	}
	return nodeflow.NewMessageWithMetadata(payload, meta), nil
}
