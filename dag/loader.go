package dag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/recpipe/errors"
)

// Loader loads pipeline definitions by name.
type Loader interface {
	Load(name string) (*Definition, error)
}

// DirLoader loads definitions from YAML or JSON files on disk.
type DirLoader struct {
	dirs []string
}

// NewDirLoader creates a loader that searches dirs for definition files.
func NewDirLoader(dirs ...string) *DirLoader {
	return &DirLoader{dirs: dirs}
}

var definitionExts = []string{".yaml", ".yml", ".json"}

// Load searches each directory, and its immediate subdirectories, for
// {name}.yaml, {name}.yml or {name}.json.
func (l *DirLoader) Load(name string) (*Definition, error) {
	for _, dir := range l.dirs {
		for _, ext := range definitionExts {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return LoadDefinition(path)
			}

			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			if len(matches) > 0 {
				return LoadDefinition(matches[0])
			}
		}
	}
	return nil, errors.NotFound("pipeline definition", name).
		WithDetail("dirs", strings.Join(l.dirs, string(os.PathListSeparator)))
}

// LoadDefinition reads and parses one definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("pipeline definition", path)
		}
		return nil, errors.Internal(err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr.WithDetail("file", path)
		}
		return nil, err
	}
	return def, nil
}

// ParseDefinition decodes a YAML or JSON definition after validating it
// against the definition schema.
func ParseDefinition(data []byte) (*Definition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.InvalidGraph(fmt.Sprintf("parsing definition: %v", err)).WithCause(err)
	}
	if doc == nil {
		return nil, errors.InvalidGraph("definition is empty")
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.InvalidGraph(fmt.Sprintf("decoding definition: %v", err)).WithCause(err)
	}
	return &def, nil
}

// Resolve merges a definition with its includes, depth-first. Included
// params and nodes come first; on a name clash the first one wins, so a
// diamond of includes contributes each node once. Only the root's outputs
// are kept. An include cycle is INVALID_GRAPH.
func Resolve(def *Definition, loader Loader) (*Definition, error) {
	out := &Definition{
		Name:        def.Name,
		Description: def.Description,
		Outputs:     make(map[string]string, len(def.Outputs)),
	}
	for k, v := range def.Outputs {
		out.Outputs[k] = v
	}

	r := &resolver{
		loader:   loader,
		stack:    []string{},
		resolved: make(map[string]bool),
		params:   make(map[string]bool),
		nodes:    make(map[string]bool),
		out:      out,
	}
	if err := r.merge(def); err != nil {
		return nil, err
	}
	return out, nil
}

type resolver struct {
	loader   Loader
	stack    []string
	resolved map[string]bool
	params   map[string]bool
	nodes    map[string]bool
	out      *Definition
}

func (r *resolver) merge(def *Definition) error {
	for i, name := range r.stack {
		if name == def.Name {
			path := append(append([]string(nil), r.stack[i:]...), def.Name)
			return errors.InvalidGraph("include cycle: " + strings.Join(path, " -> ")).
				WithDetail("cycle", path)
		}
	}
	r.stack = append(r.stack, def.Name)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	for _, inc := range def.Includes {
		if r.resolved[inc] {
			continue
		}
		if r.loader == nil {
			return errors.InvalidGraph(fmt.Sprintf("pipeline %q includes %q but no loader is configured", def.Name, inc))
		}
		sub, err := r.loader.Load(inc)
		if err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				return appErr.WithDetail("include", inc)
			}
			return errors.InvalidGraph(fmt.Sprintf("loading include %q: %v", inc, err)).WithCause(err)
		}
		if err := r.merge(sub); err != nil {
			return err
		}
	}

	for _, p := range def.Params {
		if r.params[p.Name] {
			continue
		}
		r.params[p.Name] = true
		r.out.Params = append(r.out.Params, p)
	}
	for _, n := range def.Nodes {
		if r.nodes[n.Name] {
			continue
		}
		r.nodes[n.Name] = true
		r.out.Nodes = append(r.out.Nodes, n)
	}

	r.resolved[def.Name] = true
	return nil
}
