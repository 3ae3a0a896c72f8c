// Package component defines the contract every pipeline stage implements,
// the type-id registry used to instantiate stages from definitions, and the
// lifecycle contract for long-running services (pools, stores, sinks).
//
// A Component declares its input slots and output type tag and computes its
// output from resolved inputs:
//
//	type Scorer struct{}
//
//	func (Scorer) Inputs() []component.Slot {
//	    return []component.Slot{{Name: "matrix", Type: "matrix"}}
//	}
//	func (Scorer) Output() component.TypeTag { return "scores" }
//	func (Scorer) Run(ctx context.Context, in component.Inputs) (any, error) { ... }
//
// Optional capabilities are expressed as separate interfaces: Configurable,
// Trainable and Snapshotter.
package component
