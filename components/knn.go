package components

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kbukum/recpipe/component"
)

// Feedback modes for UserKNN.
const (
	FeedbackExplicit = "explicit"
	FeedbackImplicit = "implicit"
)

// UserKNN is user-user collaborative filtering. Explicit feedback uses
// mean-centered ratings and predicts the user's mean plus the
// similarity-weighted average of neighbor offsets. Implicit feedback
// treats every rating as 1 and scores by the sum of neighbor similarities.
type UserKNN struct {
	trained

	MaxNbrs  int
	MinNbrs  int
	MinSim   float64
	Feedback string

	userIdx map[string]int
	itemIdx map[string]int
	rows    []knnRow
	// raters[i] lists the users who rated item i, by user index.
	raters [][]knnRating
}

type knnRow struct {
	items []int
	vals  []float64
	mean  float64
	norm  float64
}

type knnRating struct {
	user int
	val  float64
}

// smallest positive normal float64
const minSimFloor = 2.2250738585072014e-308

func (k *UserKNN) Configure(cfg map[string]any) error {
	o := newOptions(cfg)
	k.MaxNbrs = o.intOpt("max_nbrs", 20)
	k.MinNbrs = o.intOpt("min_nbrs", 1)
	k.MinSim = o.floatOpt("min_sim", 1e-6)
	k.Feedback = o.stringOpt("feedback", FeedbackExplicit, FeedbackExplicit, FeedbackImplicit)
	if err := o.done(); err != nil {
		return err
	}
	switch {
	case k.MaxNbrs < 1:
		return fmt.Errorf("max_nbrs must be positive, got %d", k.MaxNbrs)
	case k.MinNbrs < 1:
		return fmt.Errorf("min_nbrs must be positive, got %d", k.MinNbrs)
	case k.MinSim <= 0:
		return fmt.Errorf("min_sim must be positive, got %g", k.MinSim)
	}
	k.MinSim = math.Max(k.MinSim, minSimFloor)
	return nil
}

func (k *UserKNN) explicit() bool { return k.Feedback != FeedbackImplicit }

func (*UserKNN) Inputs() []component.Slot {
	return []component.Slot{
		{Name: "query", Type: TypeQuery},
		{Name: "items", Type: TypeItems},
	}
}

func (*UserKNN) Output() component.TypeTag { return TypeScoredItems }

func (k *UserKNN) Train(ctx context.Context, ds *component.Dataset) error {
	if err := k.trained.Train(ctx, ds); err != nil {
		return err
	}
	k.fit()
	return nil
}

func (k *UserKNN) UnmarshalState(data []byte) error {
	if err := k.trained.UnmarshalState(data); err != nil {
		return err
	}
	k.fit()
	return nil
}

func (k *UserKNN) fit() {
	idx := k.idx
	k.userIdx = make(map[string]int, len(idx.users))
	for i, u := range idx.users {
		k.userIdx[u] = i
	}
	k.itemIdx = make(map[string]int, len(idx.items))
	for i, it := range idx.items {
		k.itemIdx[it] = i
	}

	k.rows = make([]knnRow, len(idx.users))
	k.raters = make([][]knnRating, len(idx.items))
	for u, user := range idx.users {
		row := k.vector(idx.byUser[user])
		k.rows[u] = row
		for j, item := range row.items {
			k.raters[item] = append(k.raters[item], knnRating{user: u, val: row.vals[j]})
		}
	}
}

// vector builds a sparse row from ratings, centered in explicit mode.
// Items unknown to the model are skipped.
func (k *UserKNN) vector(rs []component.Rating) knnRow {
	var row knnRow
	type entry struct {
		item int
		val  float64
	}
	entries := make([]entry, 0, len(rs))
	var sum float64
	for _, r := range rs {
		i, ok := k.itemIdx[r.Item]
		if !ok {
			continue
		}
		v := 1.0
		if k.explicit() {
			v = r.Value
		}
		entries = append(entries, entry{i, v})
		sum += v
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].item < entries[b].item })

	if k.explicit() && len(entries) > 0 {
		row.mean = sum / float64(len(entries))
	}
	var sq float64
	for _, e := range entries {
		v := e.val - row.mean
		row.items = append(row.items, e.item)
		row.vals = append(row.vals, v)
		sq += v * v
	}
	row.norm = math.Sqrt(sq)
	return row
}

func (k *UserKNN) Run(_ context.Context, in component.Inputs) (any, error) {
	q, err := querySlot(in)
	if err != nil {
		return nil, err
	}
	items, err := itemsSlot(in)
	if err != nil {
		return nil, err
	}
	if _, err := k.index(); err != nil {
		return nil, err
	}

	out := make([]ScoredItem, len(items))
	for i, id := range items {
		out[i] = ScoredItem{ID: id, Score: math.NaN()}
	}

	self := -1
	var target knnRow
	if len(q.History) > 0 {
		target = k.vector(q.History)
		if u, ok := k.userIdx[q.User]; ok {
			self = u
		}
	} else if u, ok := k.userIdx[q.User]; ok {
		self = u
		target = k.rows[u]
	}
	if len(target.items) == 0 || target.norm == 0 {
		return out, nil
	}

	sims := k.similarities(target, self)
	for i, id := range items {
		item, ok := k.itemIdx[id]
		if !ok {
			continue
		}
		if score, ok := k.score(item, sims); ok {
			out[i].Score = score + target.mean
		}
	}
	return out, nil
}

// similarities returns the cosine similarity of target with every
// training user. The querying user's own row scores 0.
func (k *UserKNN) similarities(target knnRow, self int) []float64 {
	dense := make(map[int]float64, len(target.items))
	for j, item := range target.items {
		dense[item] = target.vals[j]
	}
	sims := make([]float64, len(k.rows))
	for u, row := range k.rows {
		if u == self || row.norm == 0 {
			continue
		}
		var dot float64
		for j, item := range row.items {
			if tv, ok := dense[item]; ok {
				dot += tv * row.vals[j]
			}
		}
		sims[u] = dot / (target.norm * row.norm)
	}
	return sims
}

// score aggregates the most similar raters of item. It reports false
// when fewer than MinNbrs neighbors qualify.
func (k *UserKNN) score(item int, sims []float64) (float64, bool) {
	var nbrs []knnRating
	for _, r := range k.raters[item] {
		if sims[r.user] >= k.MinSim {
			nbrs = append(nbrs, r)
		}
	}
	if len(nbrs) < k.MinNbrs {
		return 0, false
	}
	sort.SliceStable(nbrs, func(a, b int) bool {
		return sims[nbrs[a].user] > sims[nbrs[b].user]
	})
	if len(nbrs) > k.MaxNbrs {
		nbrs = nbrs[:k.MaxNbrs]
	}

	var num, den float64
	for _, n := range nbrs {
		s := sims[n.user]
		if k.explicit() {
			num += s * n.val
			den += math.Abs(s)
		} else {
			num += s
		}
	}
	if !k.explicit() {
		return num, true
	}
	return num / den, true
}
