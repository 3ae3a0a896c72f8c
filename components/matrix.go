package components

import (
	"context"
	"fmt"
	"sort"

	"github.com/kbukum/recpipe/component"
)

// RatingMatrix turns a raw nested list into a dense matrix.
type RatingMatrix struct{}

func (RatingMatrix) Inputs() []component.Slot {
	return []component.Slot{{Name: "raw", Type: component.Any}}
}

func (RatingMatrix) Output() component.TypeTag { return TypeMatrix }

func (RatingMatrix) Run(_ context.Context, in component.Inputs) (any, error) {
	raw, ok := in["raw"]
	if !ok || raw == nil {
		return nil, errNotSet("raw")
	}
	m, err := toMatrix(raw)
	if err != nil {
		return nil, errInvalid("raw", err)
	}
	return m, nil
}

func toMatrix(raw any) ([][]float64, error) {
	var rows [][]float64
	switch v := raw.(type) {
	case [][]float64:
		rows = v
	case []any:
		rows = make([][]float64, len(v))
		for i, r := range v {
			cells, ok := r.([]any)
			if !ok {
				if fr, ok := r.([]float64); ok {
					rows[i] = fr
					continue
				}
				return nil, fmt.Errorf("row %d is %T, want a list", i, r)
			}
			row := make([]float64, len(cells))
			for j, c := range cells {
				f, err := toFloat(c)
				if err != nil {
					return nil, fmt.Errorf("cell [%d][%d]: %w", i, j, err)
				}
				row[j] = f
			}
			rows[i] = row
		}
	default:
		return nil, fmt.Errorf("cannot build a matrix from %T", raw)
	}

	for i := 1; i < len(rows); i++ {
		if len(rows[i]) != len(rows[0]) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(rows[i]), len(rows[0]))
		}
	}
	return rows, nil
}

// RowSum scores each matrix row by its sum.
type RowSum struct{}

func (RowSum) Inputs() []component.Slot {
	return []component.Slot{{Name: "matrix", Type: TypeMatrix}}
}

func (RowSum) Output() component.TypeTag { return TypeScores }

func (RowSum) Run(_ context.Context, in component.Inputs) (any, error) {
	m, err := component.Get[[][]float64](in, "matrix")
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(m))
	for i, row := range m {
		for _, v := range row {
			scores[i] += v
		}
	}
	return scores, nil
}

// TopK ranks score indices from highest to lowest. Ties go to the lower
// index. K of 0 keeps every index.
type TopK struct {
	K int
}

func (t *TopK) Configure(cfg map[string]any) error {
	o := newOptions(cfg)
	t.K = o.intOpt("k", 0)
	if err := o.done(); err != nil {
		return err
	}
	if t.K < 0 {
		return fmt.Errorf("k must be >= 0, got %d", t.K)
	}
	return nil
}

func (*TopK) Inputs() []component.Slot {
	return []component.Slot{{Name: "scores", Type: TypeScores}}
}

func (*TopK) Output() component.TypeTag { return TypeRanking }

func (t *TopK) Run(_ context.Context, in component.Inputs) (any, error) {
	scores, err := component.Get[[]float64](in, "scores")
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if t.K > 0 && len(idx) > t.K {
		idx = idx[:t.K]
	}
	return idx, nil
}
