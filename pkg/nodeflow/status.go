package nodeflow

import "context"

// Status is a node's lifecycle state.
//
//	Created -> Running -> Stopped | Error
//	Stopped -> Running
//	any     -> Error (left only by an explicit Start)
type Status int32

const (
	// StatusCreated is the initial state of every node.
	StatusCreated Status = iota
	// StatusRunning is the only state in which a node accepts messages.
	StatusRunning
	// StatusStopped is set by Stop.
	StatusStopped
	// StatusError is set when the node faults.
	StatusError
)

// String returns the lowercase state name.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Processor is the behavior a receiving node supplies.
//
// Process is called by the dispatcher only while the node is running, and
// never concurrently for the same node. A returned error (or a panic) puts
// the node into StatusError and discards anything it emitted during the call.
type Processor interface {
	Process(ctx context.Context, msg Message) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, msg Message) error

// Process calls f(ctx, msg).
func (f ProcessorFunc) Process(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// ErrorHandler is implemented by processors that extend the node's fault path.
// When present it is called instead of Node.HandleError, and is expected to
// call Node.HandleError itself.
type ErrorHandler interface {
	HandleError(cause error)
}
