package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/registry"
)

// Connector is implemented by nodes that hold an external connection,
// such as protocol bridges.
type Connector interface {
	Connect(ctx context.Context) error
	Close() error
}

// Flow is a named set of wired nodes that start and stop together.
type Flow struct {
	name   string
	logger *slog.Logger
	router *nodeflow.FaultRouter

	mu       sync.Mutex
	elements *registry.Registry[string, nodeflow.Element]
	order    []string
	wires    [][2]string
	started  bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the flow's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRouter sets the fault router catch nodes are registered on.
// Default: a new router using the flow's logger.
func WithRouter(r *nodeflow.FaultRouter) Option {
	return func(f *Flow) {
		f.router = r
	}
}

// New creates an empty flow.
func New(name string, opts ...Option) *Flow {
	f := &Flow{
		name:     name,
		logger:   slog.Default(),
		elements: registry.New[string, nodeflow.Element](),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.router == nil {
		f.router = nodeflow.NewFaultRouter(nodeflow.WithRouterLogger(f.logger))
	}
	return f
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.name }

// Router returns the fault router. Nodes report to it when built with
// nodeflow.WithFaultReporter(f.Router()).
func (f *Flow) Router() *nodeflow.FaultRouter { return f.router }

// Add adds el to the flow. Elements that implement nodeflow.Catcher are
// registered on the flow's router.
func (f *Flow) Add(el nodeflow.Element) error {
	if el == nil || el.Base() == nil {
		return fmt.Errorf("flow %s: %w: nil node", f.name, nodeflow.ErrInvalidConfig)
	}
	id := el.Base().ID()

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.elements.Add(id, el) {
		return fmt.Errorf("flow %s: %w: duplicate node id %q", f.name, nodeflow.ErrInvalidConfig, id)
	}
	if c, ok := el.(nodeflow.Catcher); ok {
		if err := f.router.Register(c); err != nil {
			f.elements.Delete(id)
			return fmt.Errorf("flow %s: %w", f.name, err)
		}
	}
	f.order = append(f.order, id)
	return nil
}

// Wire connects fromID's output to toID's input.
func (f *Flow) Wire(fromID, toID string) error {
	from, ok := f.Node(fromID)
	if !ok {
		return fmt.Errorf("flow %s: %w: unknown node %q", f.name, nodeflow.ErrInvalidConfig, fromID)
	}
	to, ok := f.Node(toID)
	if !ok {
		return fmt.Errorf("flow %s: %w: unknown node %q", f.name, nodeflow.ErrInvalidConfig, toID)
	}
	if _, err := nodeflow.Wire(from, to); err != nil {
		return fmt.Errorf("flow %s: wire %s -> %s: %w", f.name, fromID, toID, err)
	}

	f.mu.Lock()
	f.wires = append(f.wires, [2]string{fromID, toID})
	f.mu.Unlock()
	return nil
}

// Node returns the element with the given id.
func (f *Flow) Node(id string) (nodeflow.Element, bool) {
	return f.elements.Get(id)
}

// Nodes returns node ids in the order they were added.
func (f *Flow) Nodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.order)
}

// Wires returns every wire as a (from, to) pair, in the order made.
func (f *Flow) Wires() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.wires)
}

// Start connects every Connector and then starts every node: sinks first,
// then transforms, then sources, so no node emits into a stopped one.
// If a connection fails, the connectors already opened are closed again.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return nil
	}

	els := f.elementsLocked()
	var opened []Connector
	for _, el := range els {
		c, ok := el.(Connector)
		if !ok {
			continue
		}
		if err := c.Connect(ctx); err != nil {
			for _, o := range slices.Backward(opened) {
				_ = o.Close()
			}
			return fmt.Errorf("flow %s: connect %s: %w", f.name, el.Base().ID(), err)
		}
		opened = append(opened, c)
	}

	for _, el := range startOrder(els) {
		el.Base().Start()
	}
	f.started = true
	f.logger.InfoContext(ctx, "flow started",
		slog.String("flow", f.name),
		slog.Int("nodes", len(els)),
		slog.Int("connectors", len(opened)),
	)
	return nil
}

// Stop stops every node in the reverse of start order and then closes
// every Connector. Close errors are joined.
func (f *Flow) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return nil
	}

	els := f.elementsLocked()
	for _, el := range slices.Backward(startOrder(els)) {
		el.Base().Stop()
	}

	var errs []error
	for _, el := range slices.Backward(els) {
		if c, ok := el.(Connector); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", el.Base().ID(), err))
			}
		}
	}
	f.started = false
	f.logger.InfoContext(ctx, "flow stopped", slog.String("flow", f.name))
	return errors.Join(errs...)
}

// Inject starts an injection at the node. Receiving nodes get msg as if
// it arrived on an input; sources emit it on their outputs.
func (f *Flow) Inject(ctx context.Context, nodeID string, msg nodeflow.Message) error {
	el, ok := f.Node(nodeID)
	if !ok {
		return fmt.Errorf("flow %s: %w: unknown node %q", f.name, nodeflow.ErrInvalidConfig, nodeID)
	}
	n := el.Base()
	if n.Capability().CanReceive() {
		return n.OnMessage(ctx, msg)
	}
	return n.Emit(ctx, msg)
}

func (f *Flow) elementsLocked() []nodeflow.Element {
	els := make([]nodeflow.Element, 0, len(f.order))
	for _, id := range f.order {
		if el, ok := f.elements.Get(id); ok {
			els = append(els, el)
		}
	}
	return els
}

// startOrder sorts sinks before transforms before sources, keeping
// insertion order within each group.
func startOrder(els []nodeflow.Element) []nodeflow.Element {
	rank := func(c nodeflow.Capability) int {
		switch c {
		case nodeflow.Sink:
			return 0
		case nodeflow.Transform:
			return 1
		default:
			return 2
		}
	}
	out := slices.Clone(els)
	slices.SortStableFunc(out, func(a, b nodeflow.Element) int {
		return rank(a.Base().Capability()) - rank(b.Base().Capability())
	})
	return out
}
