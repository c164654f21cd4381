package nodeflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/google/uuid"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// Element is anything built on a Node. Concrete nodes embed *Node and
// satisfy Element through the promoted Base method.
type Element interface {
	Base() *Node
}

// Node is the core shared by every node in a graph: identity, lifecycle,
// port lists and the delivery path.
//
// What a node can do is fixed by its Capability. Receiving nodes supply a
// Processor; the dispatcher calls it only while the node is running.
//
// Example:
//
//	var upper *nodeflow.Node
//	upper, err := nodeflow.NewNode("upper", nodeflow.Transform,
//	    nodeflow.ProcessorFunc(func(ctx context.Context, m nodeflow.Message) error {
//	        return upper.Emit(ctx, m.WithPayload(strings.ToUpper(m.Payload().(string))))
//	    }))
type Node struct {
	id         string
	capability Capability
	proc       Processor // nil for sources

	status atomic.Int32

	inputs  *Ports
	outputs *Ports

	// mu serializes Process calls for this node.
	mu sync.Mutex

	cfgMu      sync.RWMutex
	pipelineID string
	reporter   FaultReporter
	lastErr    error

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	maxDepth int
}

// NewNode creates a node in StatusCreated.
//
// proc is ignored for sources and required for sinks and transforms.
func NewNode(id string, capability Capability, proc Processor, opts ...Option) (*Node, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if capability < Source || capability > Transform {
		return nil, fmt.Errorf("node %s: %w: unknown capability %d", id, ErrInvalidConfig, capability)
	}
	if capability.CanReceive() && proc == nil {
		return nil, &NodeError{NodeID: id, Op: "create", Err: ErrNilProcessor}
	}

	cfg := defaultNodeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	n := &Node{
		id:         id,
		capability: capability,
		proc:       proc,
		pipelineID: cfg.pipelineID,
		reporter:   cfg.reporter,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		spans:      cfg.spans,
		maxDepth:   cfg.maxDepth,
	}
	if capability.CanReceive() {
		n.inputs = &Ports{}
	}
	if capability.CanEmit() {
		n.outputs = &Ports{}
	}
	return n, nil
}

// ValidateID checks that id is non-empty and contains no whitespace.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidNodeID)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidNodeID, id)
	}
	return nil
}

// NewNodeID returns a fresh random node id.
func NewNodeID() string {
	return uuid.NewString()
}

// Base returns n. It lets concrete nodes that embed *Node satisfy Element.
func (n *Node) Base() *Node {
	return n
}

// ID returns the node id.
func (n *Node) ID() string {
	return n.id
}

// Capability returns the node's capability.
func (n *Node) Capability() Capability {
	return n.capability
}

// Status returns the current lifecycle state.
func (n *Node) Status() Status {
	return Status(n.status.Load())
}

// Inputs returns the input port list, or nil for sources.
func (n *Node) Inputs() *Ports {
	return n.inputs
}

// Outputs returns the output port list, or nil for sinks.
func (n *Node) Outputs() *Ports {
	return n.outputs
}

// PipelineID returns the pipeline the node belongs to.
func (n *Node) PipelineID() string {
	n.cfgMu.RLock()
	defer n.cfgMu.RUnlock()
	return n.pipelineID
}

// SetPipelineID moves the node into a pipeline.
func (n *Node) SetPipelineID(id string) {
	n.cfgMu.Lock()
	n.pipelineID = id
	n.cfgMu.Unlock()
}

// FaultReporter returns where the node reports faults, or nil.
func (n *Node) FaultReporter() FaultReporter {
	n.cfgMu.RLock()
	defer n.cfgMu.RUnlock()
	return n.reporter
}

// SetFaultReporter sets where the node reports faults. nil disables reporting.
func (n *Node) SetFaultReporter(r FaultReporter) {
	n.cfgMu.Lock()
	n.reporter = r
	n.cfgMu.Unlock()
}

// Err returns the cause of the most recent fault, or nil.
func (n *Node) Err() error {
	n.cfgMu.RLock()
	defer n.cfgMu.RUnlock()
	return n.lastErr
}

// Logger returns the node's configured logger. The observability Log*
// helpers add node_id themselves; use observability.EnrichLogger for
// free-form records.
func (n *Node) Logger() *slog.Logger {
	return n.logger
}

// Metrics returns the node's metrics recorder.
func (n *Node) Metrics() observability.MetricsRecorder {
	return n.metrics
}

// MaxDepth returns the hop limit for injections starting at this node.
func (n *Node) MaxDepth() int {
	return n.maxDepth
}

// Start moves the node to StatusRunning from any state.
func (n *Node) Start() {
	n.setStatus(StatusRunning)
}

// Stop moves the node to StatusStopped from any state.
func (n *Node) Stop() {
	n.setStatus(StatusStopped)
}

// HandleError records cause and moves the node to StatusError.
func (n *Node) HandleError(cause error) {
	if cause == nil {
		return
	}
	n.cfgMu.Lock()
	n.lastErr = cause
	n.cfgMu.Unlock()

	n.setStatus(StatusError)
	observability.LogFault(n.logger, n.id, cause)
	n.metrics.RecordFault(context.Background(), n.id)
}

func (n *Node) setStatus(to Status) {
	from := Status(n.status.Swap(int32(to)))
	if from != to {
		observability.LogNodeStatus(n.logger, n.id, from.String(), to.String())
	}
}

// OnMessage delivers msg to this node.
//
// Called outside a delivery, OnMessage starts a new injection and returns
// once every downstream delivery has completed; the only errors it returns
// are capability errors and depth errors. Called from within a Processor
// with the Processor's ctx, the delivery is queued behind the current one.
//
// A message delivered while the node is not running is dropped silently.
func (n *Node) OnMessage(ctx context.Context, msg Message) error {
	if !n.capability.CanReceive() {
		return &CapabilityError{NodeID: n.id, Capability: n.capability, Err: ErrCannotReceive}
	}
	return deliverTo(ctx, n, msg)
}

// Emit sends msg on every connected output pipe, in port order.
//
// Emit does not check the emitting node's own status.
func (n *Node) Emit(ctx context.Context, msg Message) error {
	if !n.capability.CanEmit() {
		return &CapabilityError{NodeID: n.id, Capability: n.capability, Err: ErrCannotEmit}
	}
	return emitFrom(ctx, n, msg, n.outputs.Pipes())
}

// EmitTo sends msg on the output pipe at index i only.
// It is a no-op if there is no such pipe or the pipe is disconnected.
func (n *Node) EmitTo(ctx context.Context, i int, msg Message) error {
	if !n.capability.CanEmit() {
		return &CapabilityError{NodeID: n.id, Capability: n.capability, Err: ErrCannotEmit}
	}
	p := n.outputs.At(i)
	if p == nil {
		return nil
	}
	return emitFrom(ctx, n, msg, []*Pipe{p})
}
