package component

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/recpipe/errors"
)

// TypeTag names the type of a value flowing along an edge.
// Tags refine by dotted suffix: "items.scored" is a kind of "items".
type TypeTag string

// Any is compatible with every tag in both directions.
const Any TypeTag = "any"

// Compatible reports whether a producer of type producer may feed a slot of
// type consumer.
func Compatible(producer, consumer TypeTag) bool {
	if producer == consumer || producer == Any || consumer == Any {
		return true
	}
	return strings.HasPrefix(string(producer), string(consumer)+".")
}

// Slot declares one named input of a component.
type Slot struct {
	Name     string
	Type     TypeTag
	Optional bool
	// Default is used when an optional slot is left unbound. A nil Default
	// means the slot is absent from Inputs.
	Default any
}

// Inputs holds resolved slot values for a single invocation.
type Inputs map[string]any

// Component is a pipeline stage. Run must be a pure function of its inputs
// and the component's own trained or configured state.
type Component interface {
	Inputs() []Slot
	Output() TypeTag
	Run(ctx context.Context, in Inputs) (any, error)
}

// Configurable components accept hyperparameters once, at construction.
type Configurable interface {
	Configure(cfg map[string]any) error
}

// Trainable components are fitted on a full dataset before queries.
type Trainable interface {
	Train(ctx context.Context, ds *Dataset) error
}

// Snapshotter components can serialize their trained state so an identical
// instance can be rebuilt in another process.
type Snapshotter interface {
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Get returns slot as a T. Absence and wrong types are INVALID_INPUT.
func Get[T any](in Inputs, slot string) (T, error) {
	var zero T
	raw, ok := in[slot]
	if !ok || raw == nil {
		return zero, errors.InvalidInput(slot, fmt.Sprintf("slot %q is not set", slot))
	}
	v, ok := raw.(T)
	if !ok {
		return zero, errors.InvalidInput(slot, fmt.Sprintf("slot %q holds %T, want %T", slot, raw, zero))
	}
	return v, nil
}

// Lookup is Get for optional slots: it reports false when the slot is absent.
func Lookup[T any](in Inputs, slot string) (T, bool, error) {
	var zero T
	if raw, ok := in[slot]; !ok || raw == nil {
		return zero, false, nil
	}
	v, err := Get[T](in, slot)
	return v, err == nil, err
}

// Rating is one (user, item, value) observation.
type Rating struct {
	User  string  `json:"user"`
	Item  string  `json:"item"`
	Value float64 `json:"rating"`
}

// Dataset is the training input for Trainable components.
type Dataset struct {
	Ratings []Rating
}

// Users returns the distinct user ids, sorted.
func (d *Dataset) Users() []string {
	return distinct(d.Ratings, func(r Rating) string { return r.User })
}

// Items returns the distinct item ids, sorted.
func (d *Dataset) Items() []string {
	return distinct(d.Ratings, func(r Rating) string { return r.Item })
}

func distinct(rs []Rating, key func(Rating) string) []string {
	seen := make(map[string]struct{}, len(rs))
	out := make([]string, 0)
	for _, r := range rs {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
