// Package flow assembles nodes into a running graph.
//
// A Flow owns a set of nodes, the wires between them and a fault router
// for its catch nodes. Build creates one from a config.FlowFile using a
// Catalog of node factories:
//
//	file, err := config.LoadFlowFile("flow.yaml")
//	if err != nil {
//	    return err
//	}
//	f, err := flow.Build(file, flow.DefaultCatalog(), flow.Deps{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	if err := f.Start(ctx); err != nil {
//	    return err
//	}
//	defer f.Stop(context.Background())
//
//	err = f.Inject(ctx, "tag", nodeflow.NewMessage("hello"))
//
// Start connects bridge nodes before any node is started, and starts sinks
// before the nodes that feed them. Stop runs in the opposite order.
package flow
