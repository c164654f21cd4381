package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// DebugConfig configures a DebugNode.
type DebugConfig struct {
	// Level is the level records are logged at. The zero value is slog.LevelInfo.
	Level slog.Level

	// JSON renders payloads as JSON instead of with %v.
	JSON bool

	// IncludeMetadata adds the message metadata to each record.
	IncludeMetadata bool

	// Hub, when set, receives every rendered record.
	Hub *DebugHub
}

// DebugNode is a sink that logs every message it receives.
type DebugNode struct {
	*nodeflow.Node

	cfg DebugConfig
	now func() time.Time
}

// NewDebugNode creates a debug sink.
func NewDebugNode(id string, cfg DebugConfig, opts ...nodeflow.Option) (*DebugNode, error) {
	d := &DebugNode{cfg: cfg, now: time.Now}
	base, err := nodeflow.NewNode(id, nodeflow.Sink, d, opts...)
	if err != nil {
		return nil, err
	}
	d.Node = base
	return d, nil
}

// Config returns the node's configuration.
func (d *DebugNode) Config() DebugConfig { return d.cfg }

// Process implements nodeflow.Processor.
func (d *DebugNode) Process(ctx context.Context, msg nodeflow.Message) error {
	payload := d.render(msg.Payload())

	attrs := []slog.Attr{
		slog.String("node_id", d.ID()),
		slog.String("message_id", msg.ID()),
		slog.String("payload", payload),
	}
	var meta map[string]any
	if d.cfg.IncludeMetadata {
		meta = msg.Metadata()
		attrs = append(attrs, slog.Any("metadata", meta))
	}
	d.Logger().LogAttrs(ctx, d.cfg.Level, "debug message", attrs...)

	if d.cfg.Hub != nil {
		d.cfg.Hub.Publish(DebugRecord{
			Node:      d.ID(),
			MessageID: msg.ID(),
			Payload:   payload,
			Metadata:  meta,
			Time:      d.now(),
		})
	}
	return nil
}

// HandleError logs the fault with its pipeline before the node enters StatusError.
func (d *DebugNode) HandleError(cause error) {
	if cause == nil {
		return
	}
	observability.EnrichLogger(d.Logger(), d.ID(), d.PipelineID()).
		Error("debug node fault", slog.String("error", cause.Error()))
	d.Node.HandleError(cause)
}

func (d *DebugNode) render(payload any) string {
	switch p := payload.(type) {
	case nil:
		return "<nil>"
	case string:
		return p
	case []byte:
		return string(p)
	case error:
		return p.Error()
	}
	if d.cfg.JSON {
		if data, err := json.Marshal(payload); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", payload)
}
