// Package registry provides a generic thread-safe registry for values indexed
// by an ordered key.
//
// Iteration (Keys, Range) is always in ascending key order, so anything that
// walks a registry (fault routing, flow assembly) behaves the same on every run.
//
// # Basic Usage
//
//	catchers := registry.New[string, nodeflow.Catcher]()
//	if !catchers.Add("catch-1", c) {
//	    return fmt.Errorf("catcher %s already registered", "catch-1")
//	}
//
//	catchers.Range(func(id string, c nodeflow.Catcher) bool {
//	    // visited in id order
//	    return true
//	})
//
// # Factory Pattern
//
// Registries work well for factories keyed by type name:
//
//	factories := registry.New[string, flow.Factory]()
//	factories.Register("change", newChange)
//	factories.Register("switch", newSwitch)
//
//	factory, ok := factories.Get(spec.Type)
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range iterates over a
// snapshot, so fn may mutate the registry.
package registry
