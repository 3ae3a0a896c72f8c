package dag

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/validation"
)

// Definition is the declarative form of a pipeline, loaded from YAML or
// JSON and replicated to workers as part of a Blueprint.
type Definition struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Includes    []string          `yaml:"includes,omitempty" json:"includes,omitempty"`
	Params      []ParamDef        `yaml:"params,omitempty" json:"params,omitempty"`
	Nodes       []NodeDef         `yaml:"nodes" json:"nodes"`
	Outputs     map[string]string `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// ParamDef declares a pipeline parameter.
type ParamDef struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// NodeDef declares one node.
type NodeDef struct {
	Name string `yaml:"name" json:"name"`
	// Component is the registry type id.
	Component string              `yaml:"component" json:"component"`
	Config    map[string]any      `yaml:"config,omitempty" json:"config,omitempty"`
	Inputs    map[string]InputDef `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// InputDef binds a slot. Exactly one of Node, Param or Literal is set; a
// binding with neither Node nor Param is a literal. A null literal only
// binds optional slots.
type InputDef struct {
	Node    string `yaml:"node,omitempty" json:"node,omitempty"`
	Param   string `yaml:"param,omitempty" json:"param,omitempty"`
	Literal any    `yaml:"literal,omitempty" json:"literal,omitempty"`
}

// Source converts the binding to a graph source.
func (d InputDef) Source() Source {
	switch {
	case d.Node != "":
		return Node(d.Node)
	case d.Param != "":
		return Param(d.Param)
	default:
		return Literal(d.Literal)
	}
}

// MarshalJSON emits exactly one key so that zero-valued literals survive
// the trip to a worker.
func (d InputDef) MarshalJSON() ([]byte, error) {
	switch {
	case d.Node != "":
		return json.Marshal(map[string]string{"node": d.Node})
	case d.Param != "":
		return json.Marshal(map[string]string{"param": d.Param})
	default:
		return json.Marshal(map[string]any{"literal": d.Literal})
	}
}

// Check runs the semantic checks the schema cannot express: unique names,
// identifiers, and outputs that point at declared nodes. It expects a
// definition with includes already resolved.
func (d *Definition) Check() error {
	v := validation.New()
	v.Required("name", d.Name).Identifier("name", d.Name)

	seen := make(map[string]bool)
	for i, p := range d.Params {
		field := fmt.Sprintf("params[%d].name", i)
		v.Required(field, p.Name).Identifier(field, p.Name).Unique(field, p.Name, seen)
	}
	for i, n := range d.Nodes {
		field := fmt.Sprintf("nodes[%d].name", i)
		v.Required(field, n.Name).Identifier(field, n.Name).Unique(field, n.Name, seen)
		v.Required(fmt.Sprintf("nodes[%d].component", i), n.Component)
	}

	v.Check(len(d.Outputs) > 0, "outputs", "at least one output is required")
	for _, name := range sortedKeys(d.Outputs) {
		node := d.Outputs[name]
		v.Check(d.hasNode(node), "outputs."+name, "references unknown node %q", node)
	}

	if err := v.ValidateAs(errors.ErrCodeInvalidGraph); err != nil {
		return err.WithDetail("pipeline", d.Name)
	}
	return nil
}

func (d *Definition) hasNode(name string) bool {
	for _, n := range d.Nodes {
		if n.Name == name {
			return true
		}
	}
	return false
}
