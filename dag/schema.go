package dag

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kbukum/recpipe/errors"
)

//go:embed definition.schema.json
var definitionSchemaJSON []byte

var (
	definitionSchema     *jsonschema.Schema
	definitionSchemaErr  error
	definitionSchemaOnce sync.Once
)

func compiledSchema() (*jsonschema.Schema, error) {
	definitionSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("definition.schema.json", bytes.NewReader(definitionSchemaJSON)); err != nil {
			definitionSchemaErr = fmt.Errorf("add definition schema: %w", err)
			return
		}
		definitionSchema, definitionSchemaErr = compiler.Compile("definition.schema.json")
	})
	return definitionSchema, definitionSchemaErr
}

// Violation is one schema violation in a definition document.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidateDocument checks a decoded definition document against the
// definition schema. doc may come from YAML; it is normalized through JSON
// first so numbers and maps have the shapes the validator expects.
func ValidateDocument(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return errors.Internal(err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.InvalidGraph(fmt.Sprintf("definition is not representable as JSON: %v", err))
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return errors.InvalidGraph(fmt.Sprintf("definition is not representable as JSON: %v", err))
	}

	err = schema.Validate(normalized)
	if err == nil {
		return nil
	}

	var violations []Violation
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		violations = leafViolations(verr)
	} else {
		violations = []Violation{{Path: "", Message: err.Error()}}
	}
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Path < violations[j].Path })

	msg := "definition does not match schema"
	if len(violations) > 0 {
		msg = fmt.Sprintf("%s: %s %s", msg, displayPath(violations[0].Path), violations[0].Message)
	}
	return errors.InvalidGraph(msg).WithDetail("violations", violations)
}

func leafViolations(verr *jsonschema.ValidationError) []Violation {
	if len(verr.Causes) == 0 {
		return []Violation{{Path: verr.InstanceLocation, Message: verr.Message}}
	}
	var out []Violation
	for _, c := range verr.Causes {
		out = append(out, leafViolations(c)...)
	}
	return out
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
