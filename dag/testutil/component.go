package testutil

import (
	"context"
	"sync"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/dag"
)

// MockComponent is a configurable test component.
// It records calls and returns a preset output or error.
type MockComponent struct {
	slots  []component.Slot
	out    component.TypeTag
	output any
	err    error
	fn     func(ctx context.Context, in component.Inputs) (any, error)

	mu    sync.Mutex
	calls int
	last  component.Inputs
}

var _ component.Component = (*MockComponent)(nil)

// NewMock creates a mock component producing out-typed values. If err is
// non-nil, every run fails with it.
func NewMock(out component.TypeTag, output any, err error, slots ...component.Slot) *MockComponent {
	return &MockComponent{slots: slots, out: out, output: output, err: err}
}

// NewMockFunc creates a mock component backed by a custom function.
func NewMockFunc(out component.TypeTag, fn func(ctx context.Context, in component.Inputs) (any, error), slots ...component.Slot) *MockComponent {
	return &MockComponent{slots: slots, out: out, fn: fn}
}

// In declares a required slot.
func In(name string, typ component.TypeTag) component.Slot {
	return component.Slot{Name: name, Type: typ}
}

// Optional declares an optional slot with a default.
func Optional(name string, typ component.TypeTag, def any) component.Slot {
	return component.Slot{Name: name, Type: typ, Optional: true, Default: def}
}

func (m *MockComponent) Inputs() []component.Slot   { return m.slots }
func (m *MockComponent) Output() component.TypeTag { return m.out }

func (m *MockComponent) Run(ctx context.Context, in component.Inputs) (any, error) {
	m.mu.Lock()
	m.calls++
	m.last = in
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(ctx, in)
	}
	return m.output, m.err
}

// Calls returns how many times Run was invoked.
func (m *MockComponent) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastInputs returns the inputs of the most recent run.
func (m *MockComponent) LastInputs() component.Inputs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Reset clears the call counter.
func (m *MockComponent) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.last = nil
}

// GraphBuilder provides a fluent API over dag.Builder. The first error is
// kept and returned by Build; later calls are no-ops.
type GraphBuilder struct {
	b   *dag.Builder
	err error
}

// NewGraphBuilder creates a new GraphBuilder.
func NewGraphBuilder(name string) *GraphBuilder {
	return &GraphBuilder{b: dag.NewBuilder(name)}
}

// Param declares a pipeline parameter.
func (g *GraphBuilder) Param(name string, typ component.TypeTag) *GraphBuilder {
	if g.err == nil {
		g.err = g.b.AddParam(name, typ)
	}
	return g
}

// Node adds a node with its bindings.
func (g *GraphBuilder) Node(name string, c component.Component, bindings map[string]dag.Source) *GraphBuilder {
	if g.err == nil {
		g.err = g.b.AddNode(name, c, bindings)
	}
	return g
}

// Connect rebinds a slot.
func (g *GraphBuilder) Connect(consumer, slot string, src dag.Source) *GraphBuilder {
	if g.err == nil {
		g.err = g.b.Connect(consumer, slot, src)
	}
	return g
}

// Output declares node outputs under their own names.
func (g *GraphBuilder) Output(nodes ...string) *GraphBuilder {
	for _, n := range nodes {
		if g.err != nil {
			break
		}
		g.err = g.b.DeclareOutput(n)
	}
	return g
}

// Build finalizes the graph.
func (g *GraphBuilder) Build() (*dag.Pipeline, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.b.Finalize()
}

// MustBuild finalizes the graph and panics on error.
func (g *GraphBuilder) MustBuild() *dag.Pipeline {
	p, err := g.Build()
	if err != nil {
		panic(err)
	}
	return p
}
