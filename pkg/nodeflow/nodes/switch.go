package nodes

import (
	"context"
	"fmt"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// SwitchNode routes each message to one output chosen by hashing a metadata value.
//
// Messages without the property (or with a nil value), and every message
// while fewer than two outputs exist, are broadcast unchanged. Otherwise the
// message goes to output Bucket(value, outputs) only, and is dropped if that
// pipe is disconnected.
type SwitchNode struct {
	*nodeflow.Node

	property string
}

// NewSwitchNode creates a hash-bucket switch on the given metadata property.
func NewSwitchNode(id, property string, opts ...nodeflow.Option) (*SwitchNode, error) {
	if property == "" {
		return nil, fmt.Errorf("switch node %s: %w: property is required", id, nodeflow.ErrInvalidConfig)
	}

	s := &SwitchNode{property: property}
	base, err := nodeflow.NewNode(id, nodeflow.Transform, s, opts...)
	if err != nil {
		return nil, err
	}
	s.Node = base
	return s, nil
}

// Property returns the metadata key that is hashed.
func (s *SwitchNode) Property() string { return s.property }

// Process implements nodeflow.Processor.
func (s *SwitchNode) Process(ctx context.Context, msg nodeflow.Message) error {
	outputs := s.Outputs()
	count := outputs.Len()

	value, _ := msg.Get(s.property)
	idx, ok := Bucket(value, count)
	if !ok || count < 2 {
		return s.Emit(ctx, msg)
	}

	pipe := outputs.At(idx)
	if pipe == nil || !pipe.IsConnected() {
		observability.LogDrop(s.Logger(), s.ID(), msg.ID(), observability.DropRoutingMiss)
		s.Metrics().RecordDrop(ctx, s.ID(), observability.DropRoutingMiss)
		return nil
	}
	return pipe.Send(ctx, msg)
}
