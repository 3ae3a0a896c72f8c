package dag

import (
	"sort"

	"github.com/kbukum/recpipe/component"
)

// GraphNode is a named component instance and its input bindings.
type GraphNode struct {
	name     string
	pipeline string
	comp     component.Component
	slots    []component.Slot
	bindings map[string]Source
	index    int
}

// Name returns the node name.
func (n *GraphNode) Name() string { return n.name }

// Component returns the node's component instance.
func (n *GraphNode) Component() component.Component { return n.comp }

// Slots returns the declared input slots.
func (n *GraphNode) Slots() []component.Slot { return n.slots }

// Binding returns the source bound to slot.
func (n *GraphNode) Binding(slot string) (Source, bool) {
	s, ok := n.bindings[slot]
	return s, ok
}

func (n *GraphNode) slot(name string) (component.Slot, bool) {
	for _, s := range n.slots {
		if s.Name == name {
			return s, true
		}
	}
	return component.Slot{}, false
}

// producers returns the distinct upstream node names, in slot order.
func (n *GraphNode) producers() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range n.slots {
		src, ok := n.bindings[s.Name]
		if !ok || src.Kind != SourceNode || seen[src.Ref] {
			continue
		}
		seen[src.Ref] = true
		out = append(out, src.Ref)
	}
	return out
}

func (n *GraphNode) clone() *GraphNode {
	c := *n
	c.bindings = make(map[string]Source, len(n.bindings))
	for k, v := range n.bindings {
		c.bindings[k] = v
	}
	return &c
}

// Pipeline is a finalized, immutable graph with its cached execution order.
// It is safe to share between goroutines as long as its components are.
type Pipeline struct {
	name    string
	params  []ParamSpec
	nodes   map[string]*GraphNode
	order   []string
	outputs map[string]string
	onames  []string
	needed  map[string]bool
	def     *Definition
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Params returns the declared parameters in declaration order.
func (p *Pipeline) Params() []ParamSpec {
	return append([]ParamSpec(nil), p.params...)
}

// Order returns the topological order of all nodes.
func (p *Pipeline) Order() []string {
	return append([]string(nil), p.order...)
}

// Plan returns the nodes a run evaluates, in execution order.
func (p *Pipeline) Plan() []string {
	out := make([]string, 0, len(p.needed))
	for _, name := range p.order {
		if p.needed[name] {
			out = append(out, name)
		}
	}
	return out
}

// Outputs returns output name to node name.
func (p *Pipeline) Outputs() map[string]string {
	out := make(map[string]string, len(p.outputs))
	for k, v := range p.outputs {
		out[k] = v
	}
	return out
}

// OutputNames returns the output names, sorted.
func (p *Pipeline) OutputNames() []string {
	names := append([]string(nil), p.onames...)
	sort.Strings(names)
	return names
}

// Node returns a node by name.
func (p *Pipeline) Node(name string) (*GraphNode, bool) {
	n, ok := p.nodes[name]
	return n, ok
}

// Nodes returns all nodes in execution order.
func (p *Pipeline) Nodes() []*GraphNode {
	out := make([]*GraphNode, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.nodes[name])
	}
	return out
}

// Definition returns the definition the pipeline was built from, or nil
// for pipelines assembled in code.
func (p *Pipeline) Definition() *Definition { return p.def }

// closure marks every node the declared outputs transitively depend on.
func (p *Pipeline) closure() map[string]bool {
	needed := make(map[string]bool, len(p.nodes))
	var stack []string
	for _, node := range p.outputs {
		stack = append(stack, node)
	}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if needed[name] {
			continue
		}
		needed[name] = true
		stack = append(stack, p.nodes[name].producers()...)
	}
	return needed
}
