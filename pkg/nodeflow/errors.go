package nodeflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for node construction.
var (
	// ErrInvalidNodeID indicates a node id is empty or contains whitespace.
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrInvalidConfig indicates a node was constructed without required configuration.
	ErrInvalidConfig = errors.New("invalid node config")

	// ErrNilProcessor indicates a receiving node was constructed without a Processor.
	ErrNilProcessor = errors.New("processor cannot be nil")
)

// Sentinel errors for delivery.
var (
	// ErrCannotReceive indicates a message was delivered to a node without inputs.
	ErrCannotReceive = errors.New("node cannot receive messages")

	// ErrCannotEmit indicates a node without outputs tried to emit.
	ErrCannotEmit = errors.New("node cannot emit messages")

	// ErrMaxDepth indicates a delivery chain exceeded the configured depth.
	ErrMaxDepth = errors.New("exceeded maximum delivery depth")
)

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "process", "start").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a Processor.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CapabilityError reports an operation the node's capability does not allow.
type CapabilityError struct {
	// NodeID is the node the operation was attempted on.
	NodeID string
	// Capability is the node's capability.
	Capability Capability
	// Err is ErrCannotReceive or ErrCannotEmit.
	Err error
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s node %s: %v", e.Capability, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// DepthError reports a delivery dropped because its path exceeded the depth limit.
type DepthError struct {
	// Max is the configured depth limit.
	Max int
	// NodeID is the node the dropped delivery was addressed to.
	NodeID string
	// MessageID is the id of the dropped message.
	MessageID string
}

// Error implements the error interface.
func (e *DepthError) Error() string {
	return fmt.Sprintf("exceeded maximum delivery depth (%d) at node %s, message %s", e.Max, e.NodeID, e.MessageID)
}

// Unwrap returns ErrMaxDepth for errors.Is support.
func (e *DepthError) Unwrap() error {
	return ErrMaxDepth
}
