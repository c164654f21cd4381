package nodeflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Pipe is one directed connection point anchored on a node.
//
// An output pipe on the upstream node is connected to an input pipe on the
// downstream node; Send on the output pipe delivers to the peer's owner.
// A pipe has at most one peer and does not own either node.
type Pipe struct {
	id    string
	owner *Node

	mu   sync.RWMutex
	peer *Pipe
}

// NewPipe creates a disconnected pipe anchored on owner.
func NewPipe(owner *Node) *Pipe {
	return &Pipe{
		id:    uuid.NewString(),
		owner: owner,
	}
}

// ID returns the pipe id.
func (p *Pipe) ID() string {
	return p.id
}

// Owner returns the node this pipe is anchored on.
func (p *Pipe) Owner() *Node {
	return p.owner
}

// Peer returns the connected pipe, or nil.
func (p *Pipe) Peer() *Pipe {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peer
}

// Connect sets the delivery target, replacing any previous peer.
func (p *Pipe) Connect(peer *Pipe) {
	p.mu.Lock()
	p.peer = peer
	p.mu.Unlock()
}

// Disconnect clears the peer. Calling it on a disconnected pipe is a no-op.
func (p *Pipe) Disconnect() {
	p.mu.Lock()
	p.peer = nil
	p.mu.Unlock()
}

// IsConnected reports whether a peer is set.
func (p *Pipe) IsConnected() bool {
	return p.Peer() != nil
}

// Send delivers msg to the peer's owner node. It is a no-op when the pipe is
// disconnected. Send never buffers or retries.
func (p *Pipe) Send(ctx context.Context, msg Message) error {
	peer := p.Peer()
	if peer == nil || peer.owner == nil {
		return nil
	}
	return peer.owner.OnMessage(ctx, msg)
}

// Wire connects from's new output pipe to to's new input pipe.
// It refuses pairs where from cannot emit or to cannot receive.
func Wire(from, to Element) (*Pipe, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("wire: %w: nil node", ErrInvalidConfig)
	}
	src, dst := from.Base(), to.Base()
	if !src.capability.CanEmit() {
		return nil, &CapabilityError{NodeID: src.id, Capability: src.capability, Err: ErrCannotEmit}
	}
	if !dst.capability.CanReceive() {
		return nil, &CapabilityError{NodeID: dst.id, Capability: dst.capability, Err: ErrCannotReceive}
	}

	out := NewPipe(src)
	in := NewPipe(dst)
	out.Connect(in)
	src.outputs.Add(out)
	dst.inputs.Add(in)
	return out, nil
}

// Unwire disconnects and removes every output pipe of from that delivers to to,
// along with the matching input pipes on to. It returns the number removed.
func Unwire(from, to Element) int {
	if from == nil || to == nil {
		return 0
	}
	src, dst := from.Base(), to.Base()
	removed := 0
	for _, out := range src.outputs.Pipes() {
		peer := out.Peer()
		if peer == nil || peer.owner != dst {
			continue
		}
		out.Disconnect()
		src.outputs.Remove(out)
		dst.inputs.Remove(peer)
		removed++
	}
	return removed
}
