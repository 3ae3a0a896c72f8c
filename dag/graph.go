package dag

import (
	"fmt"
	"sort"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/errors"
)

// SourceKind identifies where a slot's value comes from.
type SourceKind string

const (
	SourceNode    SourceKind = "node"
	SourceParam   SourceKind = "param"
	SourceLiteral SourceKind = "literal"
)

// Source is the origin of one input slot.
type Source struct {
	Kind  SourceKind
	Ref   string
	Value any
}

// Node binds a slot to the output of the named node.
func Node(name string) Source { return Source{Kind: SourceNode, Ref: name} }

// Param binds a slot to a pipeline-level parameter.
func Param(name string) Source { return Source{Kind: SourceParam, Ref: name} }

// Literal binds a slot to a constant. Literals carry no type tag and are
// not checked against the slot type; a nil literal may only bind an
// optional slot.
func Literal(v any) Source { return Source{Kind: SourceLiteral, Value: v} }

func (s Source) String() string {
	if s.Kind == SourceLiteral {
		return "literal"
	}
	return string(s.Kind) + ":" + s.Ref
}

// ParamSpec declares a pipeline-level input parameter.
type ParamSpec struct {
	Name string
	Type component.TypeTag
}

// Builder assembles a pipeline graph. It is mutable until Finalize succeeds
// and frozen afterwards. A Builder is not safe for concurrent use.
type Builder struct {
	name    string
	params  map[string]ParamSpec
	porder  []string
	nodes   map[string]*GraphNode
	order   []string
	outputs map[string]string
	oorder  []string
	frozen  bool
}

// NewBuilder starts an empty graph.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:    name,
		params:  make(map[string]ParamSpec),
		nodes:   make(map[string]*GraphNode),
		outputs: make(map[string]string),
	}
}

// AddParam declares a pipeline-level input parameter.
func (b *Builder) AddParam(name string, typ component.TypeTag) error {
	if b.frozen {
		return errors.FrozenGraph("add_param")
	}
	if name == "" {
		return errors.InvalidGraph("parameter name is required")
	}
	if b.taken(name) {
		return errors.DuplicateNode(name)
	}
	if typ == "" {
		typ = component.Any
	}
	b.params[name] = ParamSpec{Name: name, Type: typ}
	b.porder = append(b.porder, name)
	return nil
}

// AddNode adds a node with its initial bindings. Producers referenced by
// bindings must already exist, so node-to-node cycles can only arise
// through Connect.
func (b *Builder) AddNode(name string, c component.Component, bindings map[string]Source) error {
	if b.frozen {
		return errors.FrozenGraph("add_node")
	}
	if name == "" {
		return errors.InvalidGraph("node name is required")
	}
	if c == nil {
		return errors.InvalidGraph(fmt.Sprintf("node %q has no component", name))
	}
	if b.taken(name) {
		return errors.DuplicateNode(name)
	}

	n := &GraphNode{
		name:     name,
		pipeline: b.name,
		comp:     c,
		slots:    c.Inputs(),
		bindings: make(map[string]Source, len(bindings)),
		index:    len(b.order),
	}
	for _, slot := range sortedKeys(bindings) {
		if err := b.checkBinding(n, slot, bindings[slot]); err != nil {
			return err
		}
		n.bindings[slot] = bindings[slot]
	}

	b.nodes[name] = n
	b.order = append(b.order, name)
	return nil
}

// Connect rebinds one input slot of an existing node.
func (b *Builder) Connect(consumer, slot string, src Source) error {
	if b.frozen {
		return errors.FrozenGraph("connect")
	}
	n, ok := b.nodes[consumer]
	if !ok {
		return errors.UnknownInput(consumer, slot, "node", consumer)
	}
	if err := b.checkBinding(n, slot, src); err != nil {
		return err
	}
	n.bindings[slot] = src
	return nil
}

// DeclareOutput exposes a node's value under the node's own name.
func (b *Builder) DeclareOutput(node string) error {
	return b.DeclareOutputs(map[string]string{node: node})
}

// DeclareOutputs exposes node values under the given output names.
func (b *Builder) DeclareOutputs(outputs map[string]string) error {
	if b.frozen {
		return errors.FrozenGraph("declare_output")
	}
	names := sortedKeys(outputs)
	for _, name := range names {
		node := outputs[name]
		if _, ok := b.nodes[node]; !ok {
			return errors.New(errors.ErrCodeUnknownInput,
				fmt.Sprintf("output %q references unknown node %q", name, node)).
				WithDetails(map[string]any{"output": name, "kind": "node", "ref": node})
		}
		if _, dup := b.outputs[name]; dup {
			return errors.InvalidGraph(fmt.Sprintf("output %q declared twice", name)).
				WithDetail("output", name)
		}
	}
	for _, name := range names {
		b.outputs[name] = outputs[name]
		b.oorder = append(b.oorder, name)
	}
	return nil
}

// Finalize validates the graph, computes the execution order and returns
// the immutable Pipeline. On failure the builder is left unchanged and
// still mutable; on success it is frozen.
func (b *Builder) Finalize() (*Pipeline, error) {
	if b.frozen {
		return nil, errors.FrozenGraph("finalize")
	}

	for _, name := range b.order {
		n := b.nodes[name]
		for _, s := range n.slots {
			if _, bound := n.bindings[s.Name]; !bound && !s.Optional {
				return nil, errors.UnboundInput(name, s.Name)
			}
		}
	}
	if len(b.outputs) == 0 {
		return nil, errors.InvalidGraph("pipeline declares no outputs")
	}

	order, err := b.topoSort()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		name:    b.name,
		nodes:   make(map[string]*GraphNode, len(b.nodes)),
		order:   order,
		outputs: make(map[string]string, len(b.outputs)),
		onames:  append([]string(nil), b.oorder...),
	}
	for _, name := range b.porder {
		p.params = append(p.params, b.params[name])
	}
	for name, n := range b.nodes {
		p.nodes[name] = n.clone()
	}
	for k, v := range b.outputs {
		p.outputs[k] = v
	}
	p.needed = p.closure()

	b.frozen = true
	return p, nil
}

// Frozen reports whether Finalize has succeeded.
func (b *Builder) Frozen() bool { return b.frozen }

func (b *Builder) taken(name string) bool {
	_, isNode := b.nodes[name]
	_, isParam := b.params[name]
	return isNode || isParam
}

func (b *Builder) checkBinding(n *GraphNode, slot string, src Source) error {
	s, ok := n.slot(slot)
	if !ok {
		return errors.UnknownInput(n.name, slot, "slot", slot)
	}

	switch src.Kind {
	case SourceNode:
		producer, ok := b.nodes[src.Ref]
		if !ok {
			return errors.UnknownInput(n.name, slot, "node", src.Ref)
		}
		if out := producer.comp.Output(); !component.Compatible(out, s.Type) {
			return errors.TypeMismatch(n.name, slot, string(s.Type), string(out))
		}
	case SourceParam:
		p, ok := b.params[src.Ref]
		if !ok {
			return errors.UnknownInput(n.name, slot, "param", src.Ref)
		}
		if !component.Compatible(p.Type, s.Type) {
			return errors.TypeMismatch(n.name, slot, string(s.Type), string(p.Type))
		}
	case SourceLiteral:
		if src.Value == nil && !s.Optional {
			return errors.TypeMismatch(n.name, slot, string(s.Type), "null")
		}
	default:
		return errors.InvalidGraph(fmt.Sprintf("node %q slot %q: unknown source kind %q", n.name, slot, src.Kind))
	}
	return nil
}

// topoSort runs Kahn's algorithm. Among nodes that become ready at the
// same time, the one added first runs first.
func (b *Builder) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(b.nodes))
	dependents := make(map[string][]string)

	for _, name := range b.order {
		deps := b.nodes[name].producers()
		inDegree[name] = len(deps)
		for _, d := range deps {
			dependents[d] = append(dependents[d], name)
		}
	}

	ready := &readyQueue{}
	for _, name := range b.order {
		if inDegree[name] == 0 {
			ready.push(b.nodes[name].index, name)
		}
	}

	order := make([]string, 0, len(b.order))
	for ready.len() > 0 {
		name := ready.pop()
		order = append(order, name)
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready.push(b.nodes[dep].index, dep)
			}
		}
	}

	if len(order) != len(b.order) {
		return nil, errors.Cycle(b.findCycle(inDegree))
	}
	return order, nil
}

// findCycle walks upstream from the earliest unprocessed node. Every
// unprocessed node has an unprocessed producer, so the walk must revisit a
// node; the revisited stretch is the cycle, reported in data-flow order with
// the first node repeated last.
func (b *Builder) findCycle(inDegree map[string]int) []string {
	var start string
	for _, name := range b.order {
		if inDegree[name] > 0 {
			start = name
			break
		}
	}

	seen := make(map[string]int)
	var walk []string
	cur := start
	for {
		if at, ok := seen[cur]; ok {
			loop := walk[at:]
			path := make([]string, 0, len(loop)+1)
			for i := len(loop) - 1; i >= 0; i-- {
				path = append(path, loop[i])
			}
			return append(path, path[0])
		}
		seen[cur] = len(walk)
		walk = append(walk, cur)

		next := ""
		best := -1
		for _, p := range b.nodes[cur].producers() {
			if inDegree[p] > 0 && (best < 0 || b.nodes[p].index < best) {
				next, best = p, b.nodes[p].index
			}
		}
		cur = next
	}
}

// readyQueue orders ready nodes by insertion index.
type readyQueue struct {
	idx   []int
	names []string
}

func (q *readyQueue) len() int { return len(q.idx) }

func (q *readyQueue) push(index int, name string) {
	i := sort.SearchInts(q.idx, index)
	q.idx = append(q.idx, 0)
	q.names = append(q.names, "")
	copy(q.idx[i+1:], q.idx[i:])
	copy(q.names[i+1:], q.names[i:])
	q.idx[i], q.names[i] = index, name
}

func (q *readyQueue) pop() string {
	name := q.names[0]
	q.idx, q.names = q.idx[1:], q.names[1:]
	return name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
