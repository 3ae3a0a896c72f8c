package dag

import (
	"fmt"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/errors"
)

type buildOptions struct {
	states map[string][]byte
	loader Loader
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithStates restores Snapshotter state per node name.
func WithStates(states map[string][]byte) BuildOption {
	return func(o *buildOptions) { o.states = states }
}

// WithLoader resolves includes before building.
func WithLoader(l Loader) BuildOption {
	return func(o *buildOptions) { o.loader = l }
}

// Build instantiates a definition's components through reg and drives a
// Builder to a finalized Pipeline. Nodes may be listed in any order: each
// node is added with its parameter and literal bindings, then node-to-node
// edges are connected, so ordering problems surface as CYCLE at finalize.
func Build(def *Definition, reg *component.Registry, opts ...BuildOption) (*Pipeline, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(def.Includes) > 0 {
		if o.loader == nil {
			return nil, errors.InvalidGraph(fmt.Sprintf("pipeline %q has unresolved includes", def.Name))
		}
		resolved, err := Resolve(def, o.loader)
		if err != nil {
			return nil, err
		}
		def = resolved
	}
	if err := def.Check(); err != nil {
		return nil, err
	}

	b := NewBuilder(def.Name)
	for _, p := range def.Params {
		if err := b.AddParam(p.Name, component.TypeTag(p.Type)); err != nil {
			return nil, err
		}
	}

	for _, nd := range def.Nodes {
		c, err := reg.New(nd.Component, nd.Config)
		if err != nil {
			return nil, withNode(err, nd.Name)
		}
		if state, ok := o.states[nd.Name]; ok {
			snap, ok := c.(component.Snapshotter)
			if !ok {
				return nil, errors.InvalidGraph(fmt.Sprintf("node %q has saved state but %s cannot restore it", nd.Name, nd.Component)).
					WithDetail("node", nd.Name)
			}
			if err := snap.UnmarshalState(state); err != nil {
				return nil, errors.InvalidInput("state", fmt.Sprintf("node %q: %v", nd.Name, err)).
					WithCause(err).WithDetail("node", nd.Name)
			}
		}

		initial := make(map[string]Source)
		for slot, in := range nd.Inputs {
			if in.Node == "" {
				initial[slot] = in.Source()
			}
		}
		if err := b.AddNode(nd.Name, c, initial); err != nil {
			return nil, err
		}
	}

	for _, nd := range def.Nodes {
		for _, slot := range sortedKeys(nd.Inputs) {
			if in := nd.Inputs[slot]; in.Node != "" {
				if err := b.Connect(nd.Name, slot, in.Source()); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := b.DeclareOutputs(def.Outputs); err != nil {
		return nil, err
	}
	p, err := b.Finalize()
	if err != nil {
		return nil, err
	}
	p.def = def
	return p, nil
}

func withNode(err error, node string) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.WithDetail("node", node)
	}
	return err
}

// Blueprint is the serializable form of a built pipeline: its resolved
// definition plus the trained state of every Snapshotter node. Workers
// rebuild private pipelines from it.
type Blueprint struct {
	Definition *Definition       `json:"definition"`
	States     map[string][]byte `json:"states,omitempty"`
}

// NewBlueprint captures p's definition and node states.
func NewBlueprint(p *Pipeline) (*Blueprint, error) {
	if p.def == nil {
		return nil, errors.InvalidGraph(fmt.Sprintf("pipeline %q was not built from a definition", p.name))
	}
	bp := &Blueprint{Definition: p.def, States: make(map[string][]byte)}
	for _, n := range p.Nodes() {
		snap, ok := n.comp.(component.Snapshotter)
		if !ok {
			continue
		}
		data, err := snap.MarshalState()
		if err != nil {
			return nil, errors.Internal(err).WithDetail("node", n.name)
		}
		if data != nil {
			bp.States[n.name] = data
		}
	}
	return bp, nil
}

// Build rebuilds a private Pipeline from the blueprint.
func (bp *Blueprint) Build(reg *component.Registry) (*Pipeline, error) {
	if bp == nil || bp.Definition == nil {
		return nil, errors.InvalidGraph("blueprint has no definition")
	}
	return Build(bp.Definition, reg, WithStates(bp.States))
}
