package nodeflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/registry"
)

// DefaultMaxFaultChain bounds how many times a fault raised while delivering
// a captured fault may itself be captured.
const DefaultMaxFaultChain = 4

// FaultReporter receives faults raised by nodes during delivery.
type FaultReporter interface {
	ReportFault(ctx context.Context, nodeID, pipelineID string, err error)
}

// FaultReporterFunc adapts a function to the FaultReporter interface.
type FaultReporterFunc func(ctx context.Context, nodeID, pipelineID string, err error)

// ReportFault calls f(ctx, nodeID, pipelineID, err).
func (f FaultReporterFunc) ReportFault(ctx context.Context, nodeID, pipelineID string, err error) {
	f(ctx, nodeID, pipelineID, err)
}

// Catcher turns faults from other nodes into messages.
type Catcher interface {
	ID() string
	CanHandleError(sourceNodeID, sourcePipelineID string) bool
	HandleNodeError(ctx context.Context, sourceNodeID string, err error) error
}

type faultChainKey struct{}

func faultChain(ctx context.Context) int {
	n, _ := ctx.Value(faultChainKey{}).(int)
	return n
}

// FaultRouter is a FaultReporter that hands each fault to every registered
// Catcher whose scope covers the faulting node.
//
// Each catcher receives the fault on its own injection, detached from the
// delivery that failed.
type FaultRouter struct {
	catchers *registry.Registry[string, Catcher]
	logger   *slog.Logger
	maxChain int
}

// Compile-time interface check.
var _ FaultReporter = (*FaultRouter)(nil)

// FaultRouterOption configures a FaultRouter.
type FaultRouterOption func(*FaultRouter)

// WithRouterLogger sets the router's logger. Default: slog.Default().
func WithRouterLogger(logger *slog.Logger) FaultRouterOption {
	return func(r *FaultRouter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxFaultChain sets how deep fault-of-a-fault reporting may go.
// Default: DefaultMaxFaultChain.
func WithMaxFaultChain(n int) FaultRouterOption {
	return func(r *FaultRouter) {
		if n > 0 {
			r.maxChain = n
		}
	}
}

// NewFaultRouter creates an empty router.
func NewFaultRouter(opts ...FaultRouterOption) *FaultRouter {
	r := &FaultRouter{
		catchers: registry.New[string, Catcher](),
		logger:   slog.Default(),
		maxChain: DefaultMaxFaultChain,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a catcher. Catcher ids must be unique.
func (r *FaultRouter) Register(c Catcher) error {
	if c == nil {
		return fmt.Errorf("register catcher: %w: nil catcher", ErrInvalidConfig)
	}
	if !r.catchers.Add(c.ID(), c) {
		return fmt.Errorf("register catcher: %w: duplicate id %q", ErrInvalidConfig, c.ID())
	}
	return nil
}

// Unregister removes the catcher with the given id and reports whether it existed.
func (r *FaultRouter) Unregister(id string) bool {
	return r.catchers.Delete(id)
}

// Catchers returns the registered catcher ids in ascending order.
func (r *FaultRouter) Catchers() []string {
	return r.catchers.Keys()
}

// ReportFault delivers err to every catcher that can handle it, in catcher id order.
func (r *FaultRouter) ReportFault(ctx context.Context, nodeID, pipelineID string, err error) {
	chain := faultChain(ctx)
	if chain >= r.maxChain {
		r.logger.Warn("fault chain limit reached",
			slog.String("node_id", nodeID),
			slog.String("pipeline_id", pipelineID),
			slog.Int("chain", chain),
			slog.String("error", err.Error()),
		)
		return
	}

	cctx := context.WithValue(detach(ctx), faultChainKey{}, chain+1)
	r.catchers.Range(func(id string, c Catcher) bool {
		if !c.CanHandleError(nodeID, pipelineID) {
			return true
		}
		if herr := c.HandleNodeError(cctx, nodeID, err); herr != nil {
			r.logger.Warn("catcher failed",
				slog.String("catch_id", id),
				slog.String("source_node", nodeID),
				slog.String("error", herr.Error()),
			)
		}
		return true
	})
}
