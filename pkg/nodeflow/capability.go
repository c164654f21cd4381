package nodeflow

// Capability describes which port lists a node has.
type Capability uint8

const (
	// Source nodes only emit. Delivering to a source is refused.
	Source Capability = iota + 1
	// Sink nodes only receive. Emitting from a sink is refused.
	Sink
	// Transform nodes receive and emit.
	Transform
)

// CanReceive reports whether nodes with this capability own input ports.
func (c Capability) CanReceive() bool {
	return c == Sink || c == Transform
}

// CanEmit reports whether nodes with this capability own output ports.
func (c Capability) CanEmit() bool {
	return c == Source || c == Transform
}

// String returns the capability name.
func (c Capability) String() string {
	switch c {
	case Source:
		return "source"
	case Sink:
		return "sink"
	case Transform:
		return "transform"
	default:
		return "unknown"
	}
}
