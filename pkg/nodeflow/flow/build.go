package flow

import (
	"fmt"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/config"
)

// Build creates every node in file with catalog, adds them to a new flow
// and makes the declared wires.
//
// Each node gets the shared logger, metrics and spans from deps, its
// pipeline id, the file's max depth and the flow's router as fault
// reporter. Catch nodes are registered on that router by Flow.Add.
func Build(file *config.FlowFile, catalog *Catalog, deps Deps) (*Flow, error) {
	if file == nil || catalog == nil {
		return nil, fmt.Errorf("build flow: %w: nil flow file or catalog", nodeflow.ErrInvalidConfig)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("build flow %s: %w", file.Name, err)
	}

	logger := deps.logger()
	f := New(file.Name, WithLogger(logger))

	for _, spec := range file.Nodes {
		opts := []nodeflow.Option{
			nodeflow.WithLogger(logger),
			nodeflow.WithMetrics(deps.Metrics),
			nodeflow.WithSpanManager(deps.Spans),
			nodeflow.WithPipeline(file.PipelineFor(spec)),
			nodeflow.WithMaxDepth(file.MaxDepth),
			nodeflow.WithFaultReporter(f.Router()),
		}
		el, err := catalog.Create(spec, deps, opts)
		if err != nil {
			return nil, fmt.Errorf("build flow %s: %w", file.Name, err)
		}
		if err := f.Add(el); err != nil {
			return nil, fmt.Errorf("build flow %s: %w", file.Name, err)
		}
	}

	for _, w := range file.Wires {
		if err := f.Wire(w.From, w.To); err != nil {
			return nil, fmt.Errorf("build flow %s: %w", file.Name, err)
		}
	}
	return f, nil
}
