package nodeflow

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// Delivery is iterative. Each top-level injection owns a work-list; a node's
// emissions are staged on its frame while it runs and pushed onto the
// work-list only if it succeeds. Staged deliveries are pushed in reverse so
// that popping yields the same depth-first order as direct recursion, and
// stack usage does not grow with path length.

type frameKey struct{}

// delivery is one pending OnMessage call.
type delivery struct {
	ctx   context.Context
	node  *Node
	msg   Message
	depth int
}

// frame collects deliveries requested while one node processes one message.
type frame struct {
	depth int

	mu     sync.Mutex
	closed bool
	staged []delivery
}

// stage queues d unless the frame has already been closed.
func (f *frame) stage(d delivery) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.staged = append(f.staged, d)
	return true
}

func (f *frame) open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// close seals the frame and returns what was staged.
func (f *frame) close() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	staged := f.staged
	f.staged = nil
	return staged
}

func activeFrame(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// detach returns a context outside any delivery, so that sends made with it
// start a new injection.
func detach(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), frameKey{}, (*frame)(nil))
}

// dispatcher runs one injection's work-list to completion.
type dispatcher struct {
	maxDepth int
	work     []delivery
	errs     []error
}

func (d *dispatcher) push(staged []delivery) {
	for i := len(staged) - 1; i >= 0; i-- {
		d.work = append(d.work, staged[i])
	}
}

func (d *dispatcher) run() {
	for len(d.work) > 0 {
		last := len(d.work) - 1
		dl := d.work[last]
		d.work[last] = delivery{}
		d.work = d.work[:last]

		n := dl.node
		if dl.depth > d.maxDepth {
			observability.LogDepthExceeded(n.logger, n.id, dl.msg.ID(), dl.depth, d.maxDepth)
			n.metrics.RecordDrop(dl.ctx, n.id, observability.DropDepthLimit)
			d.errs = append(d.errs, &DepthError{Max: d.maxDepth, NodeID: n.id, MessageID: dl.msg.ID()})
			continue
		}

		staged, err := n.process(dl)
		if err != nil {
			// Reported after the node lock is released so that a catcher's
			// own deliveries may reach this node again.
			n.fault(dl.ctx, err)
			continue
		}
		d.push(staged)
	}
}

// deliverTo queues msg for n on the active frame, or runs a new injection.
func deliverTo(ctx context.Context, n *Node, msg Message) error {
	if f := activeFrame(ctx); f != nil {
		if f.stage(delivery{ctx: ctx, node: n, msg: msg, depth: f.depth + 1}) {
			return nil
		}
	}

	d := &dispatcher{maxDepth: n.maxDepth}
	d.work = append(d.work, delivery{ctx: ctx, node: n, msg: msg, depth: 1})
	d.run()
	return errors.Join(d.errs...)
}

// emitFrom sends msg on pipes on behalf of n. Outside a delivery it opens a
// root frame for n so the sends become one injection.
func emitFrom(ctx context.Context, n *Node, msg Message, pipes []*Pipe) error {
	if f := activeFrame(ctx); f != nil && f.open() {
		return sendAll(ctx, msg, pipes)
	}

	root := &frame{}
	sendErr := sendAll(context.WithValue(ctx, frameKey{}, root), msg, pipes)

	d := &dispatcher{maxDepth: n.maxDepth}
	d.push(root.close())
	d.run()
	return errors.Join(append([]error{sendErr}, d.errs...)...)
}

func sendAll(ctx context.Context, msg Message, pipes []*Pipe) error {
	var errs []error
	for _, p := range pipes {
		if err := p.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// process runs the node's Processor for one delivery and returns the
// deliveries it staged. Messages reaching a node that is not running are
// dropped without error.
func (n *Node) process(dl delivery) ([]delivery, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Status() != StatusRunning {
		observability.LogDrop(n.logger, n.id, dl.msg.ID(), observability.DropNotRunning)
		n.metrics.RecordDrop(dl.ctx, n.id, observability.DropNotRunning)
		return nil, nil
	}

	ctx, span := n.spans.StartDeliverySpan(dl.ctx, n.id, dl.msg.ID())
	f := &frame{depth: dl.depth}
	ctx = context.WithValue(ctx, frameKey{}, f)

	start := time.Now()
	err := n.safeProcess(ctx, dl.msg)
	staged := f.close()
	duration := time.Since(start)

	n.metrics.RecordDelivery(ctx, n.id, duration, err)
	n.spans.EndSpanWithError(span, err)

	if err != nil {
		if len(staged) > 0 {
			observability.LogDrop(n.logger, n.id, dl.msg.ID(), observability.DropFaultedEmits)
			n.metrics.RecordDrop(dl.ctx, n.id, observability.DropFaultedEmits)
		}
		return nil, err
	}

	observability.LogDelivery(n.logger, n.id, dl.msg.ID(), float64(duration.Microseconds())/1000)
	return staged, nil
}

// safeProcess calls the Processor, converting a panic into a *PanicError.
func (n *Node) safeProcess(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				NodeID: n.id,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return n.proc.Process(ctx, msg)
}

// fault runs the node's fault path and reports err.
func (n *Node) fault(ctx context.Context, err error) {
	if h, ok := n.proc.(ErrorHandler); ok {
		h.HandleError(err)
	} else {
		n.HandleError(err)
	}
	if r := n.FaultReporter(); r != nil {
		r.ReportFault(ctx, n.id, n.PipelineID(), err)
	}
}
