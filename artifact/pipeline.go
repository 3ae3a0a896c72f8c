package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/errors"
)

const pipelinesPrefix = "pipelines/"

// DefinitionKey is where a pipeline's definition is stored.
func DefinitionKey(name string) string {
	return pipelinesPrefix + name + "/definition"
}

// StateKey is where one node's trained state is stored.
func StateKey(name, node string) string {
	return statePrefix(name) + node
}

func statePrefix(name string) string {
	return pipelinesPrefix + name + "/state/"
}

// SavePipeline persists bp under its definition name. States are written
// first and the definition last, so a reader never finds a definition
// whose states are still missing. States left over from an earlier save
// are removed.
func SavePipeline(ctx context.Context, s Store, bp *dag.Blueprint) error {
	if bp == nil || bp.Definition == nil {
		return errors.InvalidInput("blueprint", "blueprint has no definition")
	}
	name := bp.Definition.Name
	if err := ValidKey(DefinitionKey(name)); err != nil {
		return err
	}

	for node, data := range bp.States {
		if err := s.Put(ctx, StateKey(name, node), data); err != nil {
			return err
		}
	}

	existing, err := s.List(ctx, statePrefix(name))
	if err != nil {
		return err
	}
	for _, key := range existing {
		if _, keep := bp.States[strings.TrimPrefix(key, statePrefix(name))]; keep {
			continue
		}
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}

	def, err := json.Marshal(bp.Definition)
	if err != nil {
		return errors.Internal(fmt.Errorf("encode definition: %w", err)).WithDetail("pipeline", name)
	}
	return s.Put(ctx, DefinitionKey(name), def)
}

// LoadBlueprint reads a pipeline saved by SavePipeline. A pipeline that
// was never saved is NOT_FOUND.
func LoadBlueprint(ctx context.Context, s Store, name string) (*dag.Blueprint, error) {
	if err := ValidKey(DefinitionKey(name)); err != nil {
		return nil, err
	}
	raw, err := s.Get(ctx, DefinitionKey(name))
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, errors.NotFound("pipeline", name)
		}
		return nil, err
	}

	def, err := dag.ParseDefinition(raw)
	if err != nil {
		return nil, err
	}

	keys, err := s.List(ctx, statePrefix(name))
	if err != nil {
		return nil, err
	}
	states := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		states[strings.TrimPrefix(key, statePrefix(name))] = data
	}
	return &dag.Blueprint{Definition: def, States: states}, nil
}

// ListPipelines returns the names of saved pipelines, sorted.
func ListPipelines(ctx context.Context, s Store) ([]string, error) {
	keys, err := s.List(ctx, pipelinesPrefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, key := range keys {
		rest := strings.TrimPrefix(key, pipelinesPrefix)
		name, tail, ok := strings.Cut(rest, "/")
		if ok && tail == "definition" {
			names = append(names, name)
		}
	}
	return names, nil
}

// DeletePipeline removes a pipeline's definition and states.
func DeletePipeline(ctx context.Context, s Store, name string) error {
	if err := ValidKey(DefinitionKey(name)); err != nil {
		return err
	}
	if err := s.Delete(ctx, DefinitionKey(name)); err != nil {
		return err
	}
	keys, err := s.List(ctx, statePrefix(name))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
