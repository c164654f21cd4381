package nodes

import (
	"context"
	"fmt"
	"maps"
	"reflect"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
)

// Target selects what a ChangeNode writes to.
type Target int

const (
	// TargetMetadata sets a metadata key and keeps the payload.
	TargetMetadata Target = iota
	// TargetPayload sets a key in a map payload and keeps the metadata.
	TargetPayload
)

// String returns the target name used in flow files.
func (t Target) String() string {
	switch t {
	case TargetMetadata:
		return "metadata"
	case TargetPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// ParseTarget parses "metadata" or "payload".
func ParseTarget(s string) (Target, error) {
	switch s {
	case "metadata", "":
		return TargetMetadata, nil
	case "payload":
		return TargetPayload, nil
	default:
		return 0, fmt.Errorf("%w: unknown change target %q", nodeflow.ErrInvalidConfig, s)
	}
}

// ChangeNode sets one property on every message it receives and emits the
// result as a new message. The received message is never modified.
type ChangeNode struct {
	*nodeflow.Node

	property string
	value    any
	target   Target
}

// NewChangeNode creates a transform that sets property to value.
//
// With TargetPayload, the entries of a map payload with string keys (of any
// value or named map type) are copied into a new map[string]any before the
// property is set. Any other payload is replaced by a new map holding only
// property.
func NewChangeNode(id, property string, value any, target Target, opts ...nodeflow.Option) (*ChangeNode, error) {
	if property == "" {
		return nil, fmt.Errorf("change node %s: %w: property is required", id, nodeflow.ErrInvalidConfig)
	}
	if target != TargetMetadata && target != TargetPayload {
		return nil, fmt.Errorf("change node %s: %w: unknown target %d", id, nodeflow.ErrInvalidConfig, target)
	}

	c := &ChangeNode{property: property, value: value, target: target}
	base, err := nodeflow.NewNode(id, nodeflow.Transform, c, opts...)
	if err != nil {
		return nil, err
	}
	c.Node = base
	return c, nil
}

// Property returns the property name being set.
func (c *ChangeNode) Property() string { return c.property }

// Value returns the value being assigned.
func (c *ChangeNode) Value() any { return c.value }

// Target returns what the node writes to.
func (c *ChangeNode) Target() Target { return c.target }

// Process implements nodeflow.Processor.
func (c *ChangeNode) Process(ctx context.Context, msg nodeflow.Message) error {
	if c.target == TargetMetadata {
		return c.Emit(ctx, msg.WithMetadata(c.property, c.value))
	}

	payload := copyMap(msg.Payload())
	payload[c.property] = c.value
	return c.Emit(ctx, msg.WithPayload(payload))
}

// copyMap returns a map[string]any holding the entries of p when p is a map
// with string keys, or an empty map otherwise.
func copyMap(p any) map[string]any {
	out := map[string]any{}
	if m, ok := p.(map[string]any); ok {
		maps.Copy(out, m)
		return out
	}
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return out
	}
	iter := v.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out
}
