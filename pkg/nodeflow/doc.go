/*
Package nodeflow provides a flow-based message-routing runtime.

# Overview

Nodes are wired together by directed pipes. A message injected at a node is
delivered synchronously along every connected pipe, transformed and routed
by the nodes it passes through, until it reaches sinks or is dropped.

Every node shares one core (Node) and has a Capability:

  - Source: emits only. Delivering a message to a source is an error.
  - Sink: receives only. Emitting from a sink is an error.
  - Transform: receives and emits.

Receiving nodes supply a Processor. Routing and transform nodes built on this
package live in the nodes subpackage.

# Basic Usage

	src, _ := nodeflow.NewNode("src", nodeflow.Source, nil)
	sink, _ := nodeflow.NewNode("sink", nodeflow.Sink,
	    nodeflow.ProcessorFunc(func(ctx context.Context, m nodeflow.Message) error {
	        fmt.Println(m.Payload())
	        return nil
	    }))

	if _, err := nodeflow.Wire(src, sink); err != nil {
	    log.Fatal(err)
	}
	src.Start()
	sink.Start()

	_ = src.Emit(ctx, nodeflow.NewMessage("hello")) // prints "hello"

# Lifecycle

Nodes start in StatusCreated. Start moves a node to StatusRunning, Stop to
StatusStopped, and a fault to StatusError. Only running nodes process
messages; anything delivered to a node in another state is dropped without
error. A faulted node stays in StatusError until Start is called again.

# Delivery

Each call to Emit or OnMessage made outside a delivery is one injection.
Deliveries within an injection run in depth-first order on a work-list, so
deep or cyclic graphs do not grow the goroutine stack. A delivery whose
path is longer than the injecting node's MaxDepth (default 1000) is dropped
and reported to the injector as a *DepthError. Cycles are therefore legal
and always terminate.

Processors must pass the ctx they receive to Emit. Emits made with that ctx
are staged until the processor returns; if it returns an error or panics,
the staged emits are discarded.

# Faults

A processor error or panic never reaches the injector. The node moves to
StatusError, the fault is logged and counted, and it is passed to the
node's FaultReporter if one is set. FaultRouter is the standard reporter:
it hands the fault to every registered Catcher in scope, and each catcher
re-emits it as a message on a fresh injection.

	router := nodeflow.NewFaultRouter()
	catch, _ := nodes.NewCatchNode("catch", nodes.ScopeSamePipeline,
	    nodeflow.WithPipeline("telemetry"))
	_ = router.Register(catch)

	worker, _ := nodes.NewChangeNode("worker", "status", "seen", nodes.TargetMetadata,
	    nodeflow.WithPipeline("telemetry"),
	    nodeflow.WithFaultReporter(router))

# Observability

Logging uses log/slog (WithLogger). Metrics and tracing are opt-in through
WithMetrics and WithTracing; see the observability package.
*/
package nodeflow
