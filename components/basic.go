package components

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kbukum/recpipe/component"
)

// History fills a query's history from the training data. A query that
// already carries history passes through unchanged.
type History struct {
	trained
}

func (*History) Inputs() []component.Slot {
	return []component.Slot{{Name: "query", Type: TypeQuery}}
}

func (*History) Output() component.TypeTag { return TypeQuery }

func (h *History) Run(_ context.Context, in component.Inputs) (any, error) {
	q, err := querySlot(in)
	if err != nil {
		return nil, err
	}
	if len(q.History) > 0 {
		return q, nil
	}
	idx, err := h.index()
	if err != nil {
		return nil, err
	}
	q.History = append([]component.Rating(nil), idx.byUser[q.User]...)
	return q, nil
}

// Candidates selects every known item the user has not rated, sorted by id.
type Candidates struct {
	trained
}

func (*Candidates) Inputs() []component.Slot {
	return []component.Slot{{Name: "query", Type: TypeQuery}}
}

func (*Candidates) Output() component.TypeTag { return TypeItems }

func (c *Candidates) Run(_ context.Context, in component.Inputs) (any, error) {
	q, err := querySlot(in)
	if err != nil {
		return nil, err
	}
	idx, err := c.index()
	if err != nil {
		return nil, err
	}
	rated := make(map[string]bool)
	for _, r := range idx.history(q) {
		rated[r.Item] = true
	}
	out := make([]string, 0, len(idx.items))
	for _, item := range idx.items {
		if !rated[item] {
			out = append(out, item)
		}
	}
	return out, nil
}

// Popular scores items by how many training ratings they have.
type Popular struct {
	trained
}

func (*Popular) Inputs() []component.Slot {
	return []component.Slot{{Name: "items", Type: TypeItems}}
}

func (*Popular) Output() component.TypeTag { return TypeScoredItems }

func (p *Popular) Run(_ context.Context, in component.Inputs) (any, error) {
	items, err := itemsSlot(in)
	if err != nil {
		return nil, err
	}
	idx, err := p.index()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredItem, len(items))
	for i, id := range items {
		out[i] = ScoredItem{ID: id, Score: float64(idx.counts[id])}
	}
	return out, nil
}

// TopN orders scored items by descending score, ties by id, dropping
// unscored (NaN) items. N comes from the optional "n" slot when bound,
// else from config; 0 keeps everything.
type TopN struct {
	N int
}

func (t *TopN) Configure(cfg map[string]any) error {
	o := newOptions(cfg)
	t.N = o.intOpt("n", 0)
	if err := o.done(); err != nil {
		return err
	}
	if t.N < 0 {
		return fmt.Errorf("n must be >= 0, got %d", t.N)
	}
	return nil
}

func (*TopN) Inputs() []component.Slot {
	return []component.Slot{
		{Name: "items", Type: TypeScoredItems},
		{Name: "n", Type: component.Any, Optional: true},
	}
}

func (*TopN) Output() component.TypeTag { return TypeRankedItems }

func (t *TopN) Run(_ context.Context, in component.Inputs) (any, error) {
	raw, ok := in["items"]
	if !ok || raw == nil {
		return nil, errNotSet("items")
	}
	items, err := scoredItems(raw)
	if err != nil {
		return nil, errInvalid("items", err)
	}

	n := t.N
	if v, ok := in["n"]; ok && v != nil {
		if n, err = toInt(v); err != nil {
			return nil, errInvalid("n", err)
		}
		if n < 0 {
			return nil, errNegative("n", n)
		}
	}

	out := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		if !math.IsNaN(it.Score) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].ID < out[b].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
