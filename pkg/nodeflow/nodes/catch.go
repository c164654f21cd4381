package nodes

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
)

// Metadata keys set on messages emitted by a CatchNode.
const (
	MetaError      = "error"
	MetaSourceNode = "sourceNode"
	MetaTimestamp  = "timestamp"
)

// Scope selects which faults a CatchNode handles.
type Scope int

const (
	// ScopeSamePipeline handles faults from nodes in the catch node's pipeline.
	ScopeSamePipeline Scope = iota
	// ScopeSelectedNodes handles faults from an explicit set of node ids.
	ScopeSelectedNodes
)

// String returns the scope name used in flow files.
func (s Scope) String() string {
	switch s {
	case ScopeSamePipeline:
		return "same-pipeline"
	case ScopeSelectedNodes:
		return "selected-nodes"
	default:
		return "unknown"
	}
}

// ParseScope parses "same-pipeline" or "selected-nodes".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "same-pipeline", "":
		return ScopeSamePipeline, nil
	case "selected-nodes":
		return ScopeSelectedNodes, nil
	default:
		return 0, fmt.Errorf("%w: unknown catch scope %q", nodeflow.ErrInvalidConfig, s)
	}
}

// CatchNode turns faults reported by other nodes into messages.
//
// It only emits: faults reach it through HandleNodeError, normally called by
// a nodeflow.FaultRouter, never through a pipe. Emitted messages carry the
// error value as payload and MetaError, MetaSourceNode and MetaTimestamp
// (unix milliseconds) as metadata.
type CatchNode struct {
	*nodeflow.Node

	scope Scope

	mu      sync.RWMutex
	targets map[string]struct{}

	now func() time.Time
}

// Compile-time interface check.
var _ nodeflow.Catcher = (*CatchNode)(nil)

// NewCatchNode creates a catch node. With ScopeSamePipeline the pipeline is
// taken from nodeflow.WithPipeline or SetPipelineID.
func NewCatchNode(id string, scope Scope, opts ...nodeflow.Option) (*CatchNode, error) {
	if scope != ScopeSamePipeline && scope != ScopeSelectedNodes {
		return nil, fmt.Errorf("catch node %s: %w: unknown scope %d", id, nodeflow.ErrInvalidConfig, scope)
	}
	base, err := nodeflow.NewNode(id, nodeflow.Source, nil, opts...)
	if err != nil {
		return nil, err
	}
	return &CatchNode{
		Node:    base,
		scope:   scope,
		targets: make(map[string]struct{}),
		now:     time.Now,
	}, nil
}

// Scope returns the catch scope.
func (c *CatchNode) Scope() Scope { return c.scope }

// AddTarget adds a node id to the selected set.
func (c *CatchNode) AddTarget(nodeID string) {
	c.mu.Lock()
	c.targets[nodeID] = struct{}{}
	c.mu.Unlock()
}

// RemoveTarget removes a node id from the selected set.
func (c *CatchNode) RemoveTarget(nodeID string) {
	c.mu.Lock()
	delete(c.targets, nodeID)
	c.mu.Unlock()
}

// Targets returns the selected node ids in ascending order.
func (c *CatchNode) Targets() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.targets))
	for id := range c.targets {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// CanHandleError reports whether a fault from the given node is in scope.
// A catch node without a pipeline id matches no pipeline.
func (c *CatchNode) CanHandleError(sourceNodeID, sourcePipelineID string) bool {
	switch c.scope {
	case ScopeSamePipeline:
		pipeline := c.PipelineID()
		return pipeline != "" && pipeline == sourcePipelineID
	case ScopeSelectedNodes:
		c.mu.RLock()
		defer c.mu.RUnlock()
		_, ok := c.targets[sourceNodeID]
		return ok
	default:
		return false
	}
}

// HandleNodeError emits a message describing err on every connected output.
// It does not depend on the catch node's status.
func (c *CatchNode) HandleNodeError(ctx context.Context, sourceNodeID string, err error) error {
	if err == nil {
		return nil
	}
	msg := nodeflow.NewMessageWithMetadata(err, map[string]any{
		MetaError:      err.Error(),
		MetaSourceNode: sourceNodeID,
		MetaTimestamp:  c.now().UnixMilli(),
	})

	observability.LogCapture(c.Logger(), c.ID(), sourceNodeID, err)
	c.Metrics().RecordCapture(ctx, c.ID(), sourceNodeID)
	return c.Emit(ctx, msg)
}
