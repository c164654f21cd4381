// Package nodes provides the built-in node types.
//
//   - ChangeNode sets a metadata or payload property.
//   - SwitchNode routes to one output chosen by hashing a metadata value.
//   - RuleSwitchNode routes to every output whose rule matches.
//   - CatchNode turns faults from other nodes into messages.
//   - DebugNode logs what it receives and can stream it through a DebugHub.
//
// Every type embeds *nodeflow.Node, so it can be wired with nodeflow.Wire and
// started, stopped and fed like any other node.
package nodes
