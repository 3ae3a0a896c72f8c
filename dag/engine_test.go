package dag_test

import (
	"context"
	stderrors "errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/dag/testutil"
	"github.com/kbukum/recpipe/errors"
)

// rankingPipeline wires load(raw) -> score(matrix) -> rank(scores).
func rankingPipeline(t *testing.T) *dag.Pipeline {
	t.Helper()
	load := testutil.NewMockFunc("matrix", func(_ context.Context, in component.Inputs) (any, error) {
		return component.Get[[][]float64](in, "raw")
	}, testutil.In("raw", "any"))
	score := testutil.NewMockFunc("scores", func(_ context.Context, in component.Inputs) (any, error) {
		m, err := component.Get[[][]float64](in, "matrix")
		if err != nil {
			return nil, err
		}
		sums := make([]float64, len(m))
		for i, row := range m {
			for _, v := range row {
				sums[i] += v
			}
		}
		return sums, nil
	}, testutil.In("matrix", "matrix"))
	rank := testutil.NewMockFunc("ranking", func(_ context.Context, in component.Inputs) (any, error) {
		s, err := component.Get[[]float64](in, "scores")
		if err != nil {
			return nil, err
		}
		idx := make([]int, len(s))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return s[idx[a]] > s[idx[b]] })
		return idx, nil
	}, testutil.In("scores", "scores"))

	p, err := testutil.NewGraphBuilder("ranking").
		Param("raw", "any").
		Node("load", load, map[string]dag.Source{"raw": dag.Param("raw")}).
		Node("score", score, map[string]dag.Source{"matrix": dag.Node("load")}).
		Node("rank", rank, map[string]dag.Source{"scores": dag.Node("score")}).
		Output("rank").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	p := rankingPipeline(t)
	res, err := dag.Run(context.Background(), p, map[string]any{"raw": [][]float64{{1, 0}, {0, 1}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"rank": []int{0, 1}}, res.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"load", "score", "rank"}, res.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if got, _ := res.Output("rank"); got == nil {
		t.Fatal("expected rank output")
	}
}

func TestRun_DiamondRunsSharedProducerOnce(t *testing.T) {
	a := testutil.NewMock("int", 10, nil)
	add := func(_ context.Context, in component.Inputs) (any, error) {
		v, err := component.Get[int](in, "in")
		return v + 1, err
	}
	b := testutil.NewMockFunc("int", add, testutil.In("in", "int"))
	c := testutil.NewMockFunc("int", add, testutil.In("in", "int"))
	d := testutil.NewMockFunc("int", func(_ context.Context, in component.Inputs) (any, error) {
		l, _ := component.Get[int](in, "left")
		r, _ := component.Get[int](in, "right")
		return l + r, nil
	}, testutil.In("left", "int"), testutil.In("right", "int"))

	p := testutil.NewGraphBuilder("diamond").
		Node("a", a, nil).
		Node("b", b, map[string]dag.Source{"in": dag.Node("a")}).
		Node("c", c, map[string]dag.Source{"in": dag.Node("a")}).
		Node("d", d, map[string]dag.Source{"left": dag.Node("b"), "right": dag.Node("c")}).
		Output("d", "b").
		MustBuild()

	res, err := dag.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Calls() != 1 {
		t.Errorf("shared producer ran %d times, want 1", a.Calls())
	}
	if diff := cmp.Diff(map[string]any{"d": 22, "b": 11}, res.Outputs); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}

	// A second run starts from a fresh memo.
	if _, err := dag.Run(context.Background(), p, nil); err != nil {
		t.Fatal(err)
	}
	if a.Calls() != 2 {
		t.Errorf("expected a fresh run to re-evaluate a, calls=%d", a.Calls())
	}
}

func TestRun_SkipsNodesOutsideClosure(t *testing.T) {
	used := testutil.NewMock("int", 1, nil)
	unused := testutil.NewMock("int", 2, nil)
	p := testutil.NewGraphBuilder("skip").
		Node("used", used, nil).
		Node("unused", unused, nil).
		Output("used").
		MustBuild()

	res, err := dag.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if unused.Calls() != 0 {
		t.Fatalf("node outside the output closure ran")
	}
	if got := res.Nodes["unused"].Status; got != dag.StatusSkipped {
		t.Errorf("expected skipped, got %s", got)
	}
	if got := res.Nodes["used"].Status; got != dag.StatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
}

func TestRun_NodeFailureCarriesSlotTrace(t *testing.T) {
	boom := stderrors.New("model not trained")
	downstream := testutil.NewMock("int", 0, nil, testutil.In("in", "int"))
	p := testutil.NewGraphBuilder("fail").
		Param("k", "int").
		Node("src", testutil.NewMock("int", 1, nil), nil).
		Node("bad", testutil.NewMock("int", nil, boom,
			testutil.In("in", "int"),
			testutil.In("k", "int"),
			testutil.Optional("alpha", "float", 0.5),
			testutil.Optional("beta", "float", nil),
			testutil.In("tag", "string"),
		), map[string]dag.Source{
			"in":  dag.Node("src"),
			"k":   dag.Param("k"),
			"tag": dag.Literal("x"),
		}).
		Node("after", downstream, map[string]dag.Source{"in": dag.Node("bad")}).
		Output("after").
		MustBuild()

	res, err := dag.Run(context.Background(), p, map[string]any{"k": 3})
	if !errors.HasCode(err, errors.ErrCodeNodeExecution) {
		t.Fatalf("expected NODE_EXECUTION, got %v", err)
	}
	if !stderrors.Is(err, boom) {
		t.Errorf("expected the component error as cause")
	}
	if errors.NodeOf(err) != "bad" {
		t.Errorf("expected failing node 'bad', got %q", errors.NodeOf(err))
	}
	appErr, _ := errors.AsAppError(err)
	want := []string{"in<-node:src", "k<-param:k", "alpha<-default", "beta<-unbound", "tag<-literal"}
	if diff := cmp.Diff(want, appErr.Details["slots"]); diff != "" {
		t.Errorf("slot trace mismatch (-want +got):\n%s", diff)
	}

	if res == nil {
		t.Fatal("expected a partial result")
	}
	if res.Nodes["src"].Status != dag.StatusCompleted || res.Nodes["bad"].Status != dag.StatusFailed {
		t.Errorf("unexpected statuses %v", res.Nodes)
	}
	if res.Nodes["after"].Status != dag.StatusPending || downstream.Calls() != 0 {
		t.Errorf("downstream node must not run after a failure")
	}
	if len(res.Outputs) != 0 {
		t.Errorf("expected no outputs, got %v", res.Outputs)
	}
}

func TestRun_MissingParam(t *testing.T) {
	p := rankingPipeline(t)
	res, err := dag.Run(context.Background(), p, map[string]any{"other": 1})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result, got %+v", res)
	}
}

func TestRun_OptionalDefaults(t *testing.T) {
	m := testutil.NewMockFunc("int", func(_ context.Context, in component.Inputs) (any, error) {
		k, ok, err := component.Lookup[int](in, "k")
		if err != nil {
			return nil, err
		}
		if !ok {
			return -1, nil
		}
		return k, nil
	}, testutil.Optional("k", "int", 5))

	p := testutil.NewGraphBuilder("defaults").Node("m", m, nil).Output("m").MustBuild()
	res, err := dag.Run(context.Background(), p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outputs["m"] != 5 {
		t.Fatalf("expected default 5, got %v", res.Outputs["m"])
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := testutil.NewMockFunc("int", func(context.Context, component.Inputs) (any, error) {
		cancel()
		return 1, nil
	})
	second := testutil.NewMock("int", 2, nil, testutil.In("in", "int"))
	p := testutil.NewGraphBuilder("cancel").
		Node("first", first, nil).
		Node("second", second, map[string]dag.Source{"in": dag.Node("first")}).
		Output("second").
		MustBuild()

	res, err := dag.Run(ctx, p, nil)
	if !errors.HasCode(err, errors.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
	if second.Calls() != 0 {
		t.Fatal("second node ran after cancellation")
	}
	if res.Nodes["first"].Status != dag.StatusCompleted {
		t.Fatalf("expected first completed, got %s", res.Nodes["first"].Status)
	}
}

func TestRun_ComponentObservesDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := testutil.NewGraphBuilder("deadline").
		Node("slow", testutil.NewMockFunc("int", func(ctx context.Context, _ component.Inputs) (any, error) {
			return nil, ctx.Err()
		}), nil).
		Output("slow").
		MustBuild()

	_, err := dag.Run(ctx, p, nil)
	if !errors.HasCode(err, errors.ErrCodeCancelled) {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}

func TestExecutor_Middleware(t *testing.T) {
	var seen []string
	trace := func(next dag.NodeFunc) dag.NodeFunc {
		return func(ctx context.Context, node *dag.GraphNode, in component.Inputs) (any, error) {
			seen = append(seen, "before:"+node.Name())
			out, err := next(ctx, node, in)
			seen = append(seen, "after:"+node.Name())
			return out, err
		}
	}
	exec := dag.NewExecutor(dag.WithMiddleware(trace))
	p := testutil.NewGraphBuilder("mw").
		Node("a", testutil.NewMock("int", 1, nil), nil).
		Node("b", testutil.NewMock("int", 2, nil, testutil.In("in", "int")), map[string]dag.Source{"in": dag.Node("a")}).
		Output("b").
		MustBuild()

	if _, err := exec.Run(context.Background(), p, nil); err != nil {
		t.Fatal(err)
	}
	want := []string{"before:a", "after:a", "before:b", "after:b"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("middleware calls mismatch (-want +got):\n%s", diff)
	}
}
