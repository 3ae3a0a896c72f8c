package components

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kbukum/recpipe/artifact"
	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/worker"
)

const knnDefinition = `
name: knn
params:
  - {name: query, type: query}
nodes:
  - {name: history, component: history, inputs: {query: {param: query}}}
  - {name: candidates, component: candidates, inputs: {query: {node: history}}}
  - name: score
    component: user-knn
    config: {max_nbrs: 20, min_nbrs: 1}
    inputs: {query: {node: history}, items: {node: candidates}}
  - {name: rank, component: top-n, config: {n: 3}, inputs: {items: {node: score}}}
outputs:
  recommendations: rank
  scores: score
`

func trainedKNN(t *testing.T) *dag.Pipeline {
	t.Helper()
	def, err := dag.ParseDefinition([]byte(knnDefinition))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	p, err := dag.Build(def, NewRegistry())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := dag.Train(context.Background(), p, ratings()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	return p
}

func recommend(t *testing.T, p *dag.Pipeline, user string) []string {
	t.Helper()
	res, err := dag.Run(context.Background(), p, map[string]any{"query": user})
	if err != nil {
		t.Fatalf("Run(%s): %v", user, err)
	}
	ids, err := ItemIDs(res.Outputs["recommendations"])
	if err != nil {
		t.Fatal(err)
	}
	return ids
}

var users = []string{"u1", "u2", "u3", "u4", "stranger"}

func TestTrainSaveReload_IdenticalRecommendations(t *testing.T) {
	ctx := context.Background()
	p := trainedKNN(t)
	bp, err := dag.NewBlueprint(p)
	if err != nil {
		t.Fatalf("NewBlueprint: %v", err)
	}

	for _, cfg := range []artifact.Config{
		{Backend: artifact.BackendFile, Path: t.TempDir()},
		{Backend: artifact.BackendBadger, InMemory: true},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			store, err := artifact.Open(cfg, logger.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()

			if err := artifact.SavePipeline(ctx, store, bp); err != nil {
				t.Fatalf("SavePipeline: %v", err)
			}
			loaded, err := artifact.LoadBlueprint(ctx, store, "knn")
			if err != nil {
				t.Fatalf("LoadBlueprint: %v", err)
			}
			if len(loaded.States) != 3 {
				t.Fatalf("expected 3 node states, got %d", len(loaded.States))
			}
			reloaded, err := loaded.Build(NewRegistry())
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			for _, u := range users {
				if diff := cmp.Diff(recommend(t, p, u), recommend(t, reloaded, u)); diff != "" {
					t.Errorf("%s: recommendations differ after reload (-want +got):\n%s", u, diff)
				}
			}
		})
	}

	if got := recommend(t, p, "u1"); len(got) != 1 || got[0] != "d" {
		t.Errorf("u1 should be recommended d, got %v", got)
	}
}

func TestBatchMatchesSingleQueryRuns(t *testing.T) {
	p := trainedKNN(t)
	bp, err := dag.NewBlueprint(p)
	if err != nil {
		t.Fatal(err)
	}

	spawner := &worker.LocalSpawner{
		Build: worker.RegistryBuilder(NewRegistry()),
		Log:   logger.NewNop(),
		Config: worker.Config{
			Mode:              worker.ModeLocal,
			HeartbeatInterval: 50 * time.Millisecond,
			HeartbeatTimeout:  2 * time.Second,
			StartTimeout:      2 * time.Second,
			GracePeriod:       500 * time.Millisecond,
		},
	}
	pool, err := batch.NewPool(batch.Config{Workers: 2, ShutdownTimeout: 2 * time.Second}, bp, spawner, batch.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop(context.Background())

	job := batch.Job{}
	for _, u := range users {
		// Params cross the wire as JSON, so the query arrives as an object.
		job.Requests = append(job.Requests, batch.Request{ID: u, Params: map[string]any{"query": map[string]any{"user": u}}})
	}
	report, err := pool.Run(ctx, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != batch.StatusSucceeded {
		t.Fatalf("expected success, got %s: %v", report.Status, report.Failures())
	}
	for i, res := range report.Results {
		if res.Sequence != i || res.RequestID != users[i] {
			t.Fatalf("result %d out of order: %+v", i, res)
		}
		got, err := ItemIDs(res.Outputs["recommendations"])
		if err != nil {
			t.Fatal(err)
		}
		want := recommend(t, p, users[i])
		if diff := cmp.Diff(want, got, cmpEmpty); diff != "" {
			t.Errorf("%s: batch differs from single run (-want +got):\n%s", users[i], diff)
		}

		// Unscorable items cross the wire as null and come back as NaN.
		gotScores, err := scoredItems(res.Outputs["scores"])
		if err != nil {
			t.Fatalf("%s: scores: %v", users[i], err)
		}
		if users[i] == "stranger" {
			if len(gotScores) == 0 {
				t.Fatal("stranger should get unscored candidates")
			}
			for _, it := range gotScores {
				if !math.IsNaN(it.Score) {
					t.Errorf("stranger item %s should be unscored, got %v", it.ID, it.Score)
				}
			}
		}
		single, err := dag.Run(ctx, p, map[string]any{"query": users[i]})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(single.Outputs["scores"], gotScores, cmpopts.EquateNaNs(), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s: scores differ from single run (-want +got):\n%s", users[i], diff)
		}
	}
}

// cmpEmpty treats nil and empty id lists as equal.
var cmpEmpty = cmp.Comparer(func(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
})
