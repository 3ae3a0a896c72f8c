package components

import (
	"context"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/errors"
)

func ratings() *component.Dataset {
	rs := []component.Rating{
		{User: "u1", Item: "a", Value: 5}, {User: "u1", Item: "b", Value: 3}, {User: "u1", Item: "c", Value: 4},
		{User: "u2", Item: "a", Value: 4}, {User: "u2", Item: "b", Value: 2}, {User: "u2", Item: "d", Value: 5},
		{User: "u3", Item: "a", Value: 1}, {User: "u3", Item: "b", Value: 5}, {User: "u3", Item: "c", Value: 2}, {User: "u3", Item: "d", Value: 1},
		{User: "u4", Item: "a", Value: 5}, {User: "u4", Item: "c", Value: 5}, {User: "u4", Item: "d", Value: 4},
	}
	return &component.Dataset{Ratings: rs}
}

func newComponent(t *testing.T, typeID string, cfg map[string]any) component.Component {
	t.Helper()
	c, err := NewRegistry().New(typeID, cfg)
	if err != nil {
		t.Fatalf("New(%s): %v", typeID, err)
	}
	return c
}

func train(t *testing.T, c component.Component) {
	t.Helper()
	if err := c.(component.Trainable).Train(context.Background(), ratings()); err != nil {
		t.Fatalf("Train: %v", err)
	}
}

func TestMatrixPipeline(t *testing.T) {
	reg := NewRegistry()
	b := dag.NewBuilder("matrix")
	if err := b.AddParam("raw", component.Any); err != nil {
		t.Fatal(err)
	}
	load, _ := reg.New(TypeIDRatingMatrix, nil)
	score, _ := reg.New(TypeIDRowSum, nil)
	rank, _ := reg.New(TypeIDTopK, nil)
	steps := []struct {
		name string
		c    component.Component
		in   map[string]dag.Source
	}{
		{"load", load, map[string]dag.Source{"raw": dag.Param("raw")}},
		{"score", score, map[string]dag.Source{"matrix": dag.Node("load")}},
		{"top_k", rank, map[string]dag.Source{"scores": dag.Node("score")}},
	}
	for _, s := range steps {
		if err := b.AddNode(s.name, s.c, s.in); err != nil {
			t.Fatalf("AddNode %s: %v", s.name, err)
		}
	}
	if err := b.DeclareOutput("top_k"); err != nil {
		t.Fatal(err)
	}
	p, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	for _, raw := range []any{
		[][]float64{{1, 0}, {0, 1}},
		[]any{[]any{1.0, 0.0}, []any{0.0, 1.0}},
	} {
		res, err := dag.Run(context.Background(), p, map[string]any{"raw": raw})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if diff := cmp.Diff([]int{0, 1}, res.Outputs["top_k"]); diff != "" {
			t.Errorf("top_k mismatch (-want +got):\n%s", diff)
		}
	}

	_, err = dag.Run(context.Background(), p, map[string]any{"raw": []any{[]any{1.0}, []any{1.0, 2.0}}})
	if !errors.HasCode(err, errors.ErrCodeNodeExecution) || errors.NodeOf(err) != "load" {
		t.Fatalf("expected NODE_EXECUTION at load for a ragged matrix, got %v", err)
	}
}

func TestTopK(t *testing.T) {
	tests := []struct {
		name   string
		cfg    map[string]any
		scores []float64
		want   []int
	}{
		{"all", nil, []float64{1, 3, 2}, []int{1, 2, 0}},
		{"ties keep lower index", nil, []float64{2, 5, 2, 5}, []int{1, 3, 0, 2}},
		{"cut", map[string]any{"k": 2}, []float64{1, 3, 2}, []int{1, 2}},
		{"float k from json", map[string]any{"k": 1.0}, []float64{1, 3, 2}, []int{1}},
		{"empty", nil, []float64{}, []int{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newComponent(t, TypeIDTopK, tc.cfg)
			got, err := c.Run(context.Background(), component.Inputs{"scores": tc.scores})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		typeID string
		cfg    map[string]any
	}{
		{TypeIDTopK, map[string]any{"k": -1}},
		{TypeIDTopK, map[string]any{"k": 1.5}},
		{TypeIDTopK, map[string]any{"kk": 1}},
		{TypeIDTopN, map[string]any{"n": "ten"}},
		{TypeIDUserKNN, map[string]any{"feedback": "binary"}},
		{TypeIDUserKNN, map[string]any{"max_nbrs": 0}},
		{TypeIDUserKNN, map[string]any{"min_sim": -0.5}},
		{TypeIDRowSum, map[string]any{"x": 1}},
	}
	reg := NewRegistry()
	for _, tc := range tests {
		if _, err := reg.New(tc.typeID, tc.cfg); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
			t.Errorf("%s %v: expected INVALID_INPUT, got %v", tc.typeID, tc.cfg, err)
		}
	}
}

func TestAsQuery(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    Query
		wantErr bool
	}{
		{"user id", "u1", Query{User: "u1"}, false},
		{"struct", Query{User: "u2"}, Query{User: "u2"}, false},
		{"json", map[string]any{"user": "u3", "history": []any{
			map[string]any{"item": "a", "rating": 4.0},
			map[string]any{"item": "b"},
		}}, Query{User: "u3", History: []component.Rating{
			{User: "u3", Item: "a", Value: 4},
			{User: "u3", Item: "b", Value: 1},
		}}, false},
		{"empty", "", Query{}, true},
		{"number", 7, Query{}, true},
		{"bad history", map[string]any{"user": "u", "history": "a"}, Query{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AsQuery(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestItemIDs(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{[]string{"a", "b"}, []string{"a", "b"}},
		{[]ScoredItem{{ID: "x", Score: 1}}, []string{"x"}},
		{[]any{"a", map[string]any{"id": "b", "score": 2.0}}, []string{"a", "b"}},
	}
	for _, tc := range tests {
		got, err := ItemIDs(tc.in)
		if err != nil {
			t.Fatalf("ItemIDs(%v): %v", tc.in, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	}
	if _, err := ItemIDs(42); err == nil {
		t.Error("expected error for a non-list")
	}
}

func TestHistoryAndCandidates(t *testing.T) {
	ctx := context.Background()
	hist := newComponent(t, TypeIDHistory, nil)
	cands := newComponent(t, TypeIDCandidates, nil)

	if _, err := hist.Run(ctx, component.Inputs{"query": "u1"}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected untrained history to fail, got %v", err)
	}
	train(t, hist)
	train(t, cands)

	q, err := hist.Run(ctx, component.Inputs{"query": "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(q.(Query).History); got != 3 {
		t.Fatalf("expected 3 history ratings, got %d", got)
	}

	given := Query{User: "u2", History: []component.Rating{{User: "u2", Item: "c", Value: 1}}}
	q, err = hist.Run(ctx, component.Inputs{"query": given})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(given, q); diff != "" {
		t.Errorf("given history should pass through (-want +got):\n%s", diff)
	}

	tests := []struct {
		query any
		want  []string
	}{
		{"u1", []string{"d"}},
		{"u2", []string{"c"}},
		{"nobody", []string{"a", "b", "c", "d"}},
		{given, []string{"a", "b", "d"}},
	}
	for _, tc := range tests {
		got, err := cands.Run(ctx, component.Inputs{"query": tc.query})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("candidates(%v) mismatch (-want +got):\n%s", tc.query, diff)
		}
	}
}

func TestPopular(t *testing.T) {
	pop := newComponent(t, TypeIDPopular, nil)
	train(t, pop)
	got, err := pop.Run(context.Background(), component.Inputs{"items": []string{"a", "b", "z"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []ScoredItem{{ID: "a", Score: 4}, {ID: "b", Score: 3}, {ID: "z", Score: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRatingIndex_LastRatingWins(t *testing.T) {
	idx := newRatingIndex([]component.Rating{
		{User: "b", Item: "x", Value: 1},
		{User: "a", Item: "y", Value: 2},
		{User: "b", Item: "x", Value: 3},
	})
	want := []component.Rating{{User: "a", Item: "y", Value: 2}, {User: "b", Item: "x", Value: 3}}
	if diff := cmp.Diff(want, idx.ratings); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, idx.users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
}

func TestUserKNN_Explicit(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  map[string]any
		want float64
	}{
		{"all neighbors", nil, 4.7212983080652275},
		{"one neighbor", map[string]any{"max_nbrs": 1}, 5.333333333333334},
		{"too few neighbors", map[string]any{"min_nbrs": 3}, math.NaN()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			knn := newComponent(t, TypeIDUserKNN, tc.cfg)
			train(t, knn)
			got, err := knn.Run(ctx, component.Inputs{"query": "u1", "items": []string{"d", "zz"}})
			if err != nil {
				t.Fatal(err)
			}
			items := got.([]ScoredItem)
			if len(items) != 2 || items[0].ID != "d" {
				t.Fatalf("unexpected items %+v", items)
			}
			if !approx(tc.want, items[0].Score) {
				t.Errorf("score for d: want %v, got %v", tc.want, items[0].Score)
			}
			if !math.IsNaN(items[1].Score) {
				t.Errorf("unknown item should be NaN, got %v", items[1].Score)
			}
		})
	}
}

func TestUserKNN_Implicit(t *testing.T) {
	knn := newComponent(t, TypeIDUserKNN, map[string]any{"feedback": FeedbackImplicit})
	train(t, knn)
	got, err := knn.Run(context.Background(), component.Inputs{"query": "u1", "items": []string{"d"}})
	if err != nil {
		t.Fatal(err)
	}
	if score := got.([]ScoredItem)[0].Score; !approx(2.1993587371177723, score) {
		t.Errorf("want 2.19936, got %v", score)
	}
}

func TestUserKNN_QueryHistory(t *testing.T) {
	knn := newComponent(t, TypeIDUserKNN, nil)
	train(t, knn)
	ctx := context.Background()

	// An unknown user described by the same ratings as u1 scores like u1.
	q := map[string]any{"user": "new", "history": []any{
		map[string]any{"item": "a", "rating": 5.0},
		map[string]any{"item": "b", "rating": 3.0},
		map[string]any{"item": "c", "rating": 4.0},
	}}
	got, err := knn.Run(ctx, component.Inputs{"query": q, "items": []string{"d"}})
	if err != nil {
		t.Fatal(err)
	}
	if score := got.([]ScoredItem)[0].Score; !approx(4.7212983080652275, score) {
		t.Errorf("want 4.7213, got %v", score)
	}

	got, err = knn.Run(ctx, component.Inputs{"query": "stranger", "items": []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(got.([]ScoredItem)[0].Score) {
		t.Errorf("unknown user without history should not be scored, got %+v", got)
	}
}

func TestScoredItemJSON(t *testing.T) {
	in := []ScoredItem{{"a", 2.5}, {"b", math.NaN()}, {"c", math.Inf(1)}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"id":"a","score":2.5},{"id":"b","score":null},{"id":"c","score":null}]`
	if string(data) != want {
		t.Fatalf("want %s, got %s", want, data)
	}

	var typed []ScoredItem
	if err := json.Unmarshal(data, &typed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	decoded, err := scoredItems(generic)
	if err != nil {
		t.Fatalf("scoredItems: %v", err)
	}
	wantItems := []ScoredItem{{"a", 2.5}, {"b", math.NaN()}, {"c", math.NaN()}}
	for _, got := range [][]ScoredItem{typed, decoded} {
		if diff := cmp.Diff(wantItems, got, cmpopts.EquateNaNs()); diff != "" {
			t.Errorf("decoded items mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestTopN(t *testing.T) {
	items := []ScoredItem{{"c", 1}, {"a", 3}, {"b", 3}, {"d", math.NaN()}, {"e", 0.5}}
	tests := []struct {
		name string
		cfg  map[string]any
		in   component.Inputs
		want []string
	}{
		{"all", nil, component.Inputs{"items": items}, []string{"a", "b", "c", "e"}},
		{"config n", map[string]any{"n": 2}, component.Inputs{"items": items}, []string{"a", "b"}},
		{"slot overrides config", map[string]any{"n": 2}, component.Inputs{"items": items, "n": 3.0}, []string{"a", "b", "c"}},
		{"json items", nil, component.Inputs{"items": []any{
			map[string]any{"id": "x", "score": 1.0},
			map[string]any{"id": "y", "score": nil},
			map[string]any{"id": "z", "score": 2.0},
		}}, []string{"z", "x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newComponent(t, TypeIDTopN, tc.cfg)
			got, err := c.Run(context.Background(), tc.in)
			if err != nil {
				t.Fatal(err)
			}
			ids, _ := ItemIDs(got)
			if diff := cmp.Diff(tc.want, ids); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	c := newComponent(t, TypeIDTopN, nil)
	if _, err := c.Run(context.Background(), component.Inputs{"items": items, "n": -1}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for negative n, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, typeID := range []string{TypeIDHistory, TypeIDCandidates, TypeIDPopular, TypeIDUserKNN} {
		t.Run(typeID, func(t *testing.T) {
			orig := newComponent(t, typeID, nil)
			if data, err := orig.(component.Snapshotter).MarshalState(); err != nil || data != nil {
				t.Fatalf("untrained state should be nil, got %q, %v", data, err)
			}
			train(t, orig)
			data, err := orig.(component.Snapshotter).MarshalState()
			if err != nil {
				t.Fatal(err)
			}

			restored := newComponent(t, typeID, nil)
			if err := restored.(component.Snapshotter).UnmarshalState(data); err != nil {
				t.Fatalf("UnmarshalState: %v", err)
			}
			in := component.Inputs{"query": "u1", "items": []string{"a", "b", "c", "d"}}
			want, err := orig.Run(context.Background(), in)
			if err != nil {
				t.Fatal(err)
			}
			got, err := restored.Run(context.Background(), in)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
				t.Errorf("restored output differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegister_Twice(t *testing.T) {
	reg := component.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := Register(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if diff := cmp.Diff([]string{
		TypeIDCandidates, TypeIDHistory, TypeIDPopular, TypeIDRatingMatrix,
		TypeIDRowSum, TypeIDTopK, TypeIDTopN, TypeIDUserKNN,
	}, reg.Types()); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
}

func approx(want, got float64) bool {
	if math.IsNaN(want) {
		return math.IsNaN(got)
	}
	return math.Abs(want-got) < 1e-9
}
